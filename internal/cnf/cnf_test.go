package cnf

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaBlocks(t *testing.T) {
	a := NewArena()
	loc := a.Alloc("loc", 4)
	dest := a.Alloc("dest", 3)
	aux := a.Fresh("aux")

	assert.Equal(t, z.Var(1), loc.First)
	assert.Equal(t, z.Var(4), loc.Last())
	assert.Equal(t, z.Var(5), dest.Var(0))
	assert.Equal(t, z.Var(8), aux)
	assert.Equal(t, 8, a.NumVars())

	assert.Equal(t, "loc", a.RoleOf(3))
	assert.Equal(t, "dest", a.RoleOf(7))
	assert.Equal(t, "aux", a.RoleOf(8))
	assert.Equal(t, "", a.RoleOf(9))
	assert.Panics(t, func() { dest.Var(3) })
}

func TestCardinality(t *testing.T) {
	type tc struct {
		Name     string
		Size     int
		True     []int
		Expected int
	}

	var cases []tc
	for _, size := range []int{1, 3, 6, 7, 12} {
		cases = append(cases,
			tc{Name: fmt.Sprintf("none of %d", size), Size: size, True: nil, Expected: -1},
			tc{Name: fmt.Sprintf("first of %d", size), Size: size, True: []int{0}, Expected: 1},
			tc{Name: fmt.Sprintf("last of %d", size), Size: size, True: []int{size - 1}, Expected: 1},
		)
		if size > 1 {
			cases = append(cases,
				tc{Name: fmt.Sprintf("two of %d", size), Size: size, True: []int{0, size - 1}, Expected: -1},
			)
		}
	}

	for _, tt := range cases {
		t.Run(tt.Name, func(t *testing.T) {
			f := NewFormula(nil)
			b := f.Arena().Alloc("x", tt.Size)
			lits := make([]z.Lit, tt.Size)
			for i := range lits {
				lits[i] = b.Var(i).Pos()
			}
			f.ExactlyOne(lits)

			g := gini.New()
			f.LoadInto(g)
			on := map[int]bool{}
			for _, i := range tt.True {
				on[i] = true
			}
			for i, m := range lits {
				if on[i] {
					g.Assume(m)
				} else {
					g.Assume(m.Not())
				}
			}
			assert.Equal(t, tt.Expected, g.Solve())
		})
	}
}

func TestSequentialCounterAllocatesAuxiliaries(t *testing.T) {
	f := NewFormula(nil)
	b := f.Arena().Alloc("x", 10)
	lits := make([]z.Lit, 10)
	for i := range lits {
		lits[i] = b.Var(i).Pos()
	}
	f.AtMostOne(lits)
	assert.Equal(t, 19, f.NumVars())
	assert.Equal(t, "amo-counter", f.Arena().RoleOf(11))
}

func TestLoadShuffledKeepsClauses(t *testing.T) {
	f := NewFormula(nil)
	b := f.Arena().Alloc("x", 5)
	f.Add(b.Var(0).Pos(), b.Var(1).Neg(), b.Var(2).Pos())
	f.Add(b.Var(3).Neg())
	f.Implies(b.Var(4).Pos(), b.Var(0).Neg(), b.Var(1).Pos())

	collect := func(lits []z.Lit) []string {
		var out []string
		var cur []int
		for _, m := range lits {
			if m == z.LitNull {
				sort.Ints(cur)
				out = append(out, fmt.Sprint(cur))
				cur = cur[:0]
				continue
			}
			cur = append(cur, m.Dimacs())
		}
		sort.Strings(out)
		return out
	}

	var plain, shuffled recorder
	f.LoadInto(&plain)
	f.LoadShuffled(&shuffled, rand.New(rand.NewSource(7)))
	assert.Equal(t, collect(plain), collect(shuffled))
	assert.Equal(t, 3, f.NumClauses())
}

type recorder []z.Lit

func (r *recorder) Add(m z.Lit) {
	*r = append(*r, m)
}

func TestModelSatisfies(t *testing.T) {
	f := NewFormula(nil)
	b := f.Arena().Alloc("x", 2)
	f.Add(b.Var(0).Pos(), b.Var(1).Pos())
	f.Add(b.Var(0).Neg())

	assert.True(t, Model{false, false, true}.Satisfies(f))
	assert.False(t, Model{false, true, false}.Satisfies(f))
	assert.False(t, Model{false, false}.Value(b.Var(1).Pos()))
	assert.True(t, Model{false, false}.Value(b.Var(1).Neg()))
}

func TestDimacsRoundTrip(t *testing.T) {
	f := NewFormula(nil)
	x := f.Arena().Alloc("loc", 3)
	y := f.Arena().Alloc("dest", 2)
	f.ExactlyOne([]z.Lit{x.Var(0).Pos(), x.Var(1).Pos(), x.Var(2).Pos()})
	f.Implies(x.Var(0).Pos(), y.Var(1).Pos())
	f.Add()

	var first bytes.Buffer
	require.NoError(t, WriteDimacs(&first, f))
	assert.Equal(t, strings.Join([]string{
		"c role loc 1 3",
		"c role dest 4 2",
		"p cnf 5 6",
		"1 2 3 0",
		"-1 -2 0",
		"-1 -3 0",
		"-2 -3 0",
		"-1 5 0",
		"0",
		"",
	}, "\n"), first.String())

	g, err := ReadDimacs(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, f.Arena().Blocks(), g.Arena().Blocks())

	var second bytes.Buffer
	require.NoError(t, WriteDimacs(&second, g))
	assert.Equal(t, first.String(), second.String())
}

func TestReadDimacs(t *testing.T) {
	type tc struct {
		Name    string
		Input   string
		Error   bool
		Clauses int
		Roles   []string
	}

	for _, tt := range []tc{
		{
			Name:  "missing header",
			Input: "1 2 3 0\n",
			Error: true,
		},
		{
			Name:  "no clauses",
			Input: "p cnf 3 3\n",
			Error: true,
		},
		{
			Name:  "variable out of range",
			Input: "p cnf 2 1\n1 3 0\n",
			Error: true,
		},
		{
			Name:  "unterminated clause",
			Input: "p cnf 2 1\n1 2\n",
			Error: true,
		},
		{
			Name:    "comments and no trailing newline",
			Input:   "c hello\np cnf 3 2\n1 -2 0\n3 0",
			Clauses: 2,
			Roles:   []string{"input"},
		},
		{
			Name:    "partial roles",
			Input:   "c role loc 1 2\np cnf  4  1\n1   4 0\n",
			Clauses: 1,
			Roles:   []string{"loc", "input"},
		},
		{
			Name:  "roles out of order",
			Input: "c role loc 2 2\np cnf 4 1\n1 4 0\n",
			Error: true,
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			f, err := ReadDimacs(strings.NewReader(tt.Input))
			if tt.Error {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.Clauses, f.NumClauses())
			var roles []string
			for _, b := range f.Arena().Blocks() {
				roles = append(roles, b.Role)
			}
			assert.Equal(t, tt.Roles, roles)
		})
	}
}
