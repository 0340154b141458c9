package local

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/aedificium/mapper/pkg/aedificium"
)

var _ aedificium.Judge = &Simulator{}

// Simulator is an in-process judge that owns a known map.
type Simulator struct {
	graph *aedificium.Graph

	mu          sync.Mutex
	explores    int
	expeditions int
	guesses     int
}

// NewSimulator returns a judge for g. g must be a valid map.
func NewSimulator(g *aedificium.Graph) (*Simulator, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid map: %w", err)
	}
	return &Simulator{graph: g}, nil
}

func (s *Simulator) NumRooms() int {
	return s.graph.Rooms()
}

// Graph returns the hidden map.
func (s *Simulator) Graph() *aedificium.Graph {
	return s.graph
}

func (s *Simulator) Explore(ctx context.Context, plans []string) ([][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([][]int, 0, len(plans))
	for _, raw := range plans {
		p, err := aedificium.ParsePlan(raw)
		if err != nil {
			return nil, err
		}
		if len(p) > aedificium.PlanLength(s.NumRooms()) {
			return nil, &aedificium.PlanLengthError{Rooms: s.NumRooms(), Length: len(p)}
		}
		trace := s.graph.Walk(p)
		labels := make([]int, len(trace))
		for i, l := range trace {
			labels[i] = int(l)
		}
		results = append(results, labels)
	}
	s.mu.Lock()
	s.explores++
	s.expeditions += len(plans)
	s.mu.Unlock()
	return results, nil
}

func (s *Simulator) Guess(ctx context.Context, guess aedificium.Guess) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	s.guesses++
	s.mu.Unlock()
	candidate, err := aedificium.GraphFromGuess(guess)
	if err != nil {
		return false, nil
	}
	if candidate.Rooms() != s.NumRooms() {
		return false, nil
	}
	return aedificium.Equivalent(s.graph, candidate), nil
}

// Explores returns the number of explore calls served so far.
func (s *Simulator) Explores() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explores
}

// QueryCount is the judge's score: one per plan walked plus one per call.
func (s *Simulator) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.explores + s.expeditions
}

func (s *Simulator) Guesses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guesses
}

// RandomGraph draws a map the way the contest generator does: room r
// carries label r mod 4 and doors are paired by a uniformly random perfect
// matching. The starting room is random.
func RandomGraph(n int, rng *rand.Rand) *aedificium.Graph {
	labels := make([]aedificium.Label, n)
	for r := range labels {
		labels[r] = aedificium.Label(r % aedificium.NumLabels)
	}
	return randomGraph(labels, rng)
}

// RandomFreeGraph is RandomGraph with uniformly random labels.
func RandomFreeGraph(n int, rng *rand.Rand) *aedificium.Graph {
	labels := make([]aedificium.Label, n)
	for r := range labels {
		labels[r] = aedificium.Label(rng.Intn(aedificium.NumLabels))
	}
	return randomGraph(labels, rng)
}

func randomGraph(labels []aedificium.Label, rng *rand.Rand) *aedificium.Graph {
	n := len(labels)
	endpoints := make([]aedificium.Endpoint, 0, n*aedificium.NumDoors)
	for r := 0; r < n; r++ {
		for d := aedificium.Door(0); d < aedificium.NumDoors; d++ {
			endpoints = append(endpoints, aedificium.Endpoint{Room: r, Door: d})
		}
	}
	rng.Shuffle(len(endpoints), func(i, j int) {
		endpoints[i], endpoints[j] = endpoints[j], endpoints[i]
	})
	g := &aedificium.Graph{
		Labels:    labels,
		Start:     rng.Intn(n),
		Adjacency: make([][aedificium.NumDoors]aedificium.Endpoint, n),
	}
	for i := 0; i < len(endpoints); i += 2 {
		a, b := endpoints[i], endpoints[i+1]
		g.Adjacency[a.Room][a.Door] = b
		g.Adjacency[b.Room][b.Door] = a
	}
	return g
}
