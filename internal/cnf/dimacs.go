package cnf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-air/gini/z"
)

var (
	commentLine = regexp.MustCompile(`^c\s*.*`)
	roleLine    = regexp.MustCompile(`^c role\s+(\S+)\s+(\d+)\s+(\d+)\s*$`)
	headerLine  = regexp.MustCompile(`^p cnf\s+\d+\s+\d+\s*`)
	clauseLine  = regexp.MustCompile(`^(-?\d+\s+)*0$`)
	cleanInput  = regexp.MustCompile(`\s\s+`)
)

// WriteDimacs writes f in DIMACS CNF format. Arena blocks are recorded as
// "c role <name> <first> <size>" comments ahead of the header. The output is
// a pure function of the formula.
// see: https://logic.pdmi.ras.ru/~basolver/dimacs.html
func WriteDimacs(w io.Writer, f *Formula) error {
	bw := bufio.NewWriter(w)
	for _, b := range f.arena.Blocks() {
		fmt.Fprintf(bw, "c role %s %d %d\n", b.Role, b.First, b.Size)
	}
	fmt.Fprintf(bw, "p cnf %d %d\n", f.NumVars(), f.NumClauses())
	buf := make([]byte, 0, 64)
	f.ForEachClause(func(clause []z.Lit) {
		buf = buf[:0]
		for _, m := range clause {
			buf = strconv.AppendInt(buf, int64(m.Dimacs()), 10)
			buf = append(buf, ' ')
		}
		buf = append(buf, '0', '\n')
		bw.Write(buf)
	})
	return bw.Flush()
}

// ReadDimacs parses a DIMACS CNF stream. Role comments written by
// WriteDimacs are restored as arena blocks; variables outside any role
// comment are issued under the "input" role.
func ReadDimacs(r io.Reader) (*Formula, error) {
	reader := bufio.NewReader(r)

	type role struct {
		name        string
		first, size int
	}
	var (
		roles      []role
		numVars    int
		numClauses int
		clauses    [][]int
		sawHeader  bool
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error reading dimacs data: %w", err)
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimSpace(line)

		switch {
		case line == "":
		case roleLine.MatchString(line):
			m := roleLine.FindStringSubmatch(line)
			first, _ := strconv.Atoi(m[2])
			size, _ := strconv.Atoi(m[3])
			roles = append(roles, role{name: m[1], first: first, size: size})
		case commentLine.MatchString(line):
			// ignore comments
		case headerLine.MatchString(line):
			if sawHeader {
				return nil, fmt.Errorf("invalid dimacs format: duplicate header (%s)", line)
			}
			problem := strings.Split(cleanInput.ReplaceAllString(line, " "), " ")
			if len(problem) != 4 {
				return nil, fmt.Errorf("invalid statement: (%s). Valid format is p cnf <variables> <clauses>", line)
			}
			if numVars, err = strconv.Atoi(problem[2]); err != nil {
				return nil, fmt.Errorf("invalid number (%s) in statement (%s)", problem[2], line)
			}
			if numClauses, err = strconv.Atoi(problem[3]); err != nil {
				return nil, fmt.Errorf("invalid number (%s) in statement (%s)", problem[3], line)
			}
			clauses = make([][]int, 0, numClauses)
			sawHeader = true
		case clauseLine.MatchString(line):
			if !sawHeader {
				return nil, fmt.Errorf("invalid dimacs format: missing header 'p cnf <variable> <clauses>'")
			}
			clause, err := parseClause(cleanInput.ReplaceAllString(line, " "), numVars)
			if err != nil {
				return nil, fmt.Errorf("invalid clause (%s): %w", line, err)
			}
			clauses = append(clauses, clause)
		default:
			return nil, fmt.Errorf("invalid dimacs command: %s", line)
		}

		if eof {
			break
		}
	}

	if !sawHeader || numVars == 0 {
		return nil, fmt.Errorf("invalid format: no variables or clauses found")
	}
	if len(clauses) != numClauses {
		return nil, fmt.Errorf("invalid format: header declares %d clauses but %d were found", numClauses, len(clauses))
	}

	arena := NewArena()
	for _, ro := range roles {
		if ro.first != arena.NumVars()+1 || ro.first+ro.size-1 > numVars {
			return nil, fmt.Errorf("invalid role comment %q: block [%d, %d) does not follow the previous block", ro.name, ro.first, ro.first+ro.size)
		}
		arena.Alloc(ro.name, ro.size)
	}
	if rest := numVars - arena.NumVars(); rest > 0 {
		arena.Alloc("input", rest)
	}

	f := NewFormula(arena)
	lits := make([]z.Lit, 0, 16)
	for _, clause := range clauses {
		lits = lits[:0]
		for _, d := range clause {
			lits = append(lits, z.Dimacs2Lit(d))
		}
		f.Add(lits...)
	}
	return f, nil
}

func parseClause(line string, numVars int) ([]int, error) {
	terms := strings.Split(line, " ")
	if terms[len(terms)-1] != "0" {
		return nil, fmt.Errorf("does not end with 0")
	}
	terms = terms[:len(terms)-1]
	clause := make([]int, 0, len(terms))
	for _, lit := range terms {
		d, err := strconv.Atoi(lit)
		if err != nil {
			return nil, fmt.Errorf("%s is not a number", lit)
		}
		if d == 0 {
			return nil, fmt.Errorf("0 is not a valid variable")
		}
		if d > numVars || d < -numVars {
			return nil, fmt.Errorf("%s is not a valid variable", lit)
		}
		clause = append(clause, d)
	}
	return clause, nil
}
