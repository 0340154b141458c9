package cnf

import (
	"math/rand"

	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/z"
)

// pairwiseLimit is the largest group for which at-most-one is expanded into
// pairwise exclusions instead of a sequential counter.
const pairwiseLimit = 6

// Formula is a CNF formula over variables issued by its Arena. Clauses are
// stored flat, each terminated by z.LitNull, which is the layout gini's
// inter.Adder expects.
type Formula struct {
	arena   *Arena
	lits    []z.Lit
	clauses int
}

func NewFormula(arena *Arena) *Formula {
	if arena == nil {
		arena = NewArena()
	}
	return &Formula{arena: arena}
}

func (f *Formula) Arena() *Arena {
	return f.arena
}

// Add appends the disjunction of lits. An empty call adds the empty clause.
func (f *Formula) Add(lits ...z.Lit) {
	f.lits = append(f.lits, lits...)
	f.lits = append(f.lits, z.LitNull)
	f.clauses++
}

// Implies adds a -> (b1 or b2 or ...).
func (f *Formula) Implies(a z.Lit, bs ...z.Lit) {
	f.lits = append(f.lits, a.Not())
	f.Add(bs...)
}

// AtMostOne forbids two of lits being true together.
func (f *Formula) AtMostOne(lits []z.Lit) {
	if len(lits) <= 1 {
		return
	}
	if len(lits) <= pairwiseLimit {
		for i := 0; i < len(lits); i++ {
			for j := i + 1; j < len(lits); j++ {
				f.Add(lits[i].Not(), lits[j].Not())
			}
		}
		return
	}
	// sequential counter: s[i] holds when one of lits[0..i] is true
	s := f.arena.Alloc("amo-counter", len(lits)-1)
	last := len(lits) - 1
	f.Add(lits[0].Not(), s.Var(0).Pos())
	for i := 1; i < last; i++ {
		f.Add(lits[i].Not(), s.Var(i).Pos())
		f.Add(s.Var(i-1).Neg(), s.Var(i).Pos())
		f.Add(lits[i].Not(), s.Var(i-1).Neg())
	}
	f.Add(lits[last].Not(), s.Var(last-1).Neg())
}

// ExactlyOne requires exactly one of lits to be true.
func (f *Formula) ExactlyOne(lits []z.Lit) {
	f.Add(lits...)
	f.AtMostOne(lits)
}

func (f *Formula) NumVars() int {
	return f.arena.NumVars()
}

func (f *Formula) NumClauses() int {
	return f.clauses
}

// ForEachClause calls fn once per clause in insertion order. The slice
// passed to fn is only valid for the duration of the call.
func (f *Formula) ForEachClause(fn func(clause []z.Lit)) {
	start := 0
	for i, m := range f.lits {
		if m == z.LitNull {
			fn(f.lits[start:i])
			start = i + 1
		}
	}
}

// LoadInto teaches every clause to g.
func (f *Formula) LoadInto(g inter.Adder) {
	for _, m := range f.lits {
		g.Add(m)
	}
}

// LoadShuffled teaches every clause to g with clause order and literal order
// permuted by rng. The set of clauses is unchanged.
func (f *Formula) LoadShuffled(g inter.Adder, rng *rand.Rand) {
	var clauses [][]z.Lit
	f.ForEachClause(func(clause []z.Lit) {
		clauses = append(clauses, append([]z.Lit(nil), clause...))
	})
	rng.Shuffle(len(clauses), func(i, j int) {
		clauses[i], clauses[j] = clauses[j], clauses[i]
	})
	for _, clause := range clauses {
		rng.Shuffle(len(clause), func(i, j int) {
			clause[i], clause[j] = clause[j], clause[i]
		})
		for _, m := range clause {
			g.Add(m)
		}
		g.Add(z.LitNull)
	}
}

// Model is a total assignment indexed by variable number. Index 0 is unused.
type Model []bool

// Value returns the truth value of m under the model.
func (mo Model) Value(m z.Lit) bool {
	v := m.Var()
	if int(v) >= len(mo) {
		return !m.IsPos()
	}
	if m.IsPos() {
		return mo[v]
	}
	return !mo[v]
}

// Satisfies reports whether every clause of f has a true literal under mo.
func (mo Model) Satisfies(f *Formula) bool {
	ok := true
	f.ForEachClause(func(clause []z.Lit) {
		if !ok {
			return
		}
		for _, m := range clause {
			if mo.Value(m) {
				return
			}
		}
		ok = false
	})
	return ok
}
