package plan

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/aedificium/mapper/pkg/aedificium"
)

// DefaultSeed seeds the walk when no other seed is configured.
const DefaultSeed int64 = 0xC0FFEE42

type key struct {
	rooms   int
	attempt int
}

// Generator produces route plans without any knowledge of the map they will
// be walked on. Plans are cached per (rooms, attempt) and are safe for
// concurrent use.
type Generator struct {
	seed    int64
	presets bool

	mu    sync.Mutex
	cache map[key]aedificium.RoutePlan
}

type Option func(g *Generator) error

// WithSeed changes the seed of the walk.
func WithSeed(seed int64) Option {
	return func(g *Generator) error {
		g.seed = seed
		return nil
	}
}

// WithoutPresets makes every attempt use a seeded walk, even for room counts
// that have an offline preset.
func WithoutPresets() Option {
	return func(g *Generator) error {
		g.presets = false
		return nil
	}
}

func NewGenerator(options ...Option) (*Generator, error) {
	g := &Generator{
		seed:    DefaultSeed,
		presets: true,
		cache:   make(map[key]aedificium.RoutePlan),
	}
	for _, option := range options {
		if err := option(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Generate returns the plan for the given attempt at a map of n rooms. The
// first attempt uses the offline preset for n when there is one; every other
// attempt reseeds the walk. The returned slice is a copy.
func (g *Generator) Generate(n, attempt int) (aedificium.RoutePlan, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of rooms %d", n)
	}
	if attempt < 0 {
		return nil, fmt.Errorf("invalid attempt %d", attempt)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	k := key{rooms: n, attempt: attempt}
	p, ok := g.cache[k]
	if !ok {
		var err error
		if p, err = g.build(n, attempt); err != nil {
			return nil, err
		}
		g.cache[k] = p
	}
	return append(aedificium.RoutePlan(nil), p...), nil
}

func (g *Generator) build(n, attempt int) (aedificium.RoutePlan, error) {
	if s, ok := presets[n]; ok && g.presets && attempt == 0 {
		p, err := aedificium.ParsePlan(s)
		if err != nil {
			return nil, fmt.Errorf("preset for %d rooms: %w", n, err)
		}
		if err := p.Validate(n); err != nil {
			return nil, fmt.Errorf("preset for %d rooms: %w", n, err)
		}
		return p, nil
	}
	seed := g.seed ^ int64(n)<<32 ^ int64(attempt)*0x9E3779B9
	return walk(n, rand.New(rand.NewSource(seed))), nil
}

// walk draws 18n doors so that every door is used exactly 3n times. A door
// is drawn with probability proportional to its remaining budget. The
// previous door is excluded while any other door has budget left, and the
// door that would close an a-b-a bounce is excluded while that still leaves
// a choice.
func walk(n int, rng *rand.Rand) aedificium.RoutePlan {
	length := aedificium.PlanLength(n)
	var remaining [aedificium.NumDoors]int
	for d := range remaining {
		remaining[d] = length / aedificium.NumDoors
	}

	p := make(aedificium.RoutePlan, 0, length)
	for len(p) < length {
		// strictness 2 excludes the last two doors, 1 the last door, 0 none
		excluded := func(d aedificium.Door, strictness int) bool {
			for back := 1; back <= strictness && back <= len(p); back++ {
				if p[len(p)-back] == d {
					return true
				}
			}
			return false
		}

		for strictness := 2; strictness >= 0; strictness-- {
			total := 0
			for d, r := range remaining {
				if !excluded(aedificium.Door(d), strictness) {
					total += r
				}
			}
			if total == 0 {
				continue
			}
			pick := rng.Intn(total)
			for d, r := range remaining {
				if r == 0 || excluded(aedificium.Door(d), strictness) {
					continue
				}
				if pick < r {
					p = append(p, aedificium.Door(d))
					remaining[d]--
					break
				}
				pick -= r
			}
			break
		}
	}
	return p
}
