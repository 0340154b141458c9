package aedificium

import (
	"fmt"
	"sort"
)

// Graph is a fully wired map: every (room, door) endpoint points at the
// endpoint on the other side of its passage.
type Graph struct {
	Labels    []Label
	Start     int
	Adjacency [][NumDoors]Endpoint
}

// Rooms returns the number of rooms in g.
func (g *Graph) Rooms() int {
	return len(g.Labels)
}

// Walk follows plan from the starting room and returns the observed labels.
func (g *Graph) Walk(plan RoutePlan) LabelTrace {
	trace := make(LabelTrace, 0, len(plan)+1)
	room := g.Start
	trace = append(trace, g.Labels[room])
	for _, d := range plan {
		room = g.Adjacency[room][d].Room
		trace = append(trace, g.Labels[room])
	}
	return trace
}

// Validate checks that g is a saturated degree-6 multigraph: every endpoint
// is paired with exactly one other endpoint and pairing is reciprocal.
func (g *Graph) Validate() error {
	n := g.Rooms()
	if n == 0 {
		return fmt.Errorf("%w: graph has no rooms", ErrSaturation)
	}
	if len(g.Adjacency) != n {
		return fmt.Errorf("%w: %d rooms but %d adjacency rows", ErrSaturation, n, len(g.Adjacency))
	}
	if g.Start < 0 || g.Start >= n {
		return fmt.Errorf("starting room %d out of range [0, %d)", g.Start, n)
	}
	for r := 0; r < n; r++ {
		if l := g.Labels[r]; l < 0 || l >= NumLabels {
			return fmt.Errorf("room %d has invalid label %d", r, l)
		}
		for d := 0; d < NumDoors; d++ {
			from := Endpoint{Room: r, Door: Door(d)}
			to := g.Adjacency[r][d]
			if to.Room < 0 || to.Room >= n || to.Door < 0 || to.Door >= NumDoors {
				return fmt.Errorf("%w: %s leads to invalid endpoint %s", ErrSaturation, from, to)
			}
			if to == from {
				return fmt.Errorf("%w: %s is paired with itself", ErrSaturation, from)
			}
			if back := g.Adjacency[to.Room][to.Door]; back != from {
				return fmt.Errorf("%w: %s leads to %s which leads back to %s", ErrSaturation, from, to, back)
			}
		}
	}
	return nil
}

// Connections lists every physical passage once, ordered by its smaller
// endpoint.
func (g *Graph) Connections() []Connection {
	conns := make([]Connection, 0, g.Rooms()*NumDoors/2)
	for r := range g.Adjacency {
		for d := 0; d < NumDoors; d++ {
			from := Endpoint{Room: r, Door: Door(d)}
			to := g.Adjacency[r][d]
			if to.Less(from) {
				continue
			}
			conns = append(conns, Connection{From: from, To: to})
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].From.Less(conns[j].From)
	})
	return conns
}

// Guess converts g into the judge's wire form.
func (g *Graph) Guess() Guess {
	rooms := make([]Label, len(g.Labels))
	copy(rooms, g.Labels)
	return Guess{
		Rooms:       rooms,
		Start:       g.Start,
		Connections: g.Connections(),
	}
}

// GraphFromGuess rebuilds the adjacency of a guess and checks that every
// endpoint appears in exactly one connection.
func GraphFromGuess(guess Guess) (*Graph, error) {
	n := len(guess.Rooms)
	if want := n * NumDoors / 2; len(guess.Connections) != want {
		return nil, fmt.Errorf("%w: %d connections, want %d", ErrSaturation, len(guess.Connections), want)
	}
	g := &Graph{
		Labels:    append([]Label(nil), guess.Rooms...),
		Start:     guess.Start,
		Adjacency: make([][NumDoors]Endpoint, n),
	}
	seen := make([][NumDoors]bool, n)
	mark := func(e Endpoint) error {
		if e.Room < 0 || e.Room >= n || e.Door < 0 || e.Door >= NumDoors {
			return fmt.Errorf("%w: invalid endpoint %s", ErrSaturation, e)
		}
		if seen[e.Room][e.Door] {
			return fmt.Errorf("%w: endpoint %s used twice", ErrSaturation, e)
		}
		seen[e.Room][e.Door] = true
		return nil
	}
	for _, c := range guess.Connections {
		if err := mark(c.From); err != nil {
			return nil, err
		}
		if err := mark(c.To); err != nil {
			return nil, err
		}
		g.Adjacency[c.From.Room][c.From.Door] = c.To
		g.Adjacency[c.To.Room][c.To.Door] = c.From
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Equivalent reports whether no route plan can tell a and b apart from their
// starting rooms. It explores the product of both maps and compares labels
// on every reachable pair of rooms.
func Equivalent(a, b *Graph) bool {
	type pair struct{ x, y int }
	start := pair{a.Start, b.Start}
	visited := map[pair]struct{}{start: {}}
	queue := []pair{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if a.Labels[p.x] != b.Labels[p.y] {
			return false
		}
		for d := 0; d < NumDoors; d++ {
			next := pair{a.Adjacency[p.x][d].Room, b.Adjacency[p.y][d].Room}
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return true
}
