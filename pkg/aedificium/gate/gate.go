package gate

import (
	"fmt"
	"strings"

	"github.com/aedificium/mapper/pkg/aedificium"
)

const numTransitions = aedificium.NumLabels * aedificium.NumDoors * aedificium.NumLabels

// Labelling is what the gate may assume about how labels are spread over
// rooms.
type Labelling int

const (
	// ObservedLabels assumes nothing beyond the trace. A label is only known
	// to exist once observed, and label shares are read off the trace.
	ObservedLabels Labelling = iota
	// RoundRobinLabels assumes room r carries label r mod 4.
	RoundRobinLabels
)

func (l Labelling) String() string {
	switch l {
	case ObservedLabels:
		return "observed"
	case RoundRobinLabels:
		return "round-robin"
	}
	return fmt.Sprintf("Labelling(%d)", int(l))
}

// Stats are the cheap trace statistics the gate classifies on.
type Stats struct {
	// LabelCounts is the number of trace steps observing each label.
	LabelCounts [aedificium.NumLabels]int
	// MissingLabels counts labels that some room is known to carry but the
	// trace never observed. It is always zero for ObservedLabels.
	MissingLabels int
	// LongestRun is the longest stretch of equal consecutive labels.
	LongestRun int
	// LabelDoorChi2 is Pearson's statistic of the (departure label, door)
	// table against uniform doors, with label shares taken from the
	// labelling.
	LabelDoorChi2 float64
	// Transitions is the number of distinct (label, door, label) triples.
	Transitions int
	// MissingTransitions is the number of possible triples never observed.
	MissingTransitions int
	// Distinguishable is the fraction of equal-label step pairs that the
	// trace proves to be different rooms.
	Distinguishable float64
}

// Verdict is the outcome of classifying one trace.
type Verdict struct {
	Favorable bool
	Stats     Stats
	Reasons   []string
}

// Err returns nil for favorable verdicts and an error wrapping
// aedificium.ErrUnfavorableTrace otherwise.
func (v Verdict) Err() error {
	if v.Favorable {
		return nil
	}
	return fmt.Errorf("%w: %s", aedificium.ErrUnfavorableTrace, strings.Join(v.Reasons, "; "))
}

// Gate aborts attempts whose traces predict a slow or ambiguous solve. It
// never changes which maps are accepted, and with ObservedLabels it never
// rejects a trace for a property that only the map decides.
type Gate struct {
	thresholds Thresholds
	labelling  Labelling
}

type Option func(*Gate)

// WithLabelling sets the label assumption. The default is ObservedLabels.
func WithLabelling(l Labelling) Option {
	return func(g *Gate) {
		g.labelling = l
	}
}

func New(t Thresholds, opts ...Option) *Gate {
	g := &Gate{thresholds: t}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Thresholds() Thresholds {
	return g.thresholds
}

func (g *Gate) Labelling() Labelling {
	return g.labelling
}

// Classify computes the trace statistics and compares them to the
// thresholds. A trace that does not fit the plan is always unfavorable.
func (g *Gate) Classify(plan aedificium.RoutePlan, trace aedificium.LabelTrace, n int) Verdict {
	if err := trace.Validate(plan); err != nil {
		return Verdict{Reasons: []string{err.Error()}}
	}
	stats := Compute(plan, trace, n, g.labelling)
	t := g.thresholds

	var reasons []string
	if stats.MissingLabels > t.MaxMissingLabels {
		reasons = append(reasons, fmt.Sprintf("%d labels never observed (max %d)", stats.MissingLabels, t.MaxMissingLabels))
	}
	// a map whose rooms mostly share one label makes long runs on every walk
	if g.labelling == RoundRobinLabels {
		if frac := float64(stats.LongestRun) / float64(len(trace)); frac > t.MaxRunFraction {
			reasons = append(reasons, fmt.Sprintf("label run of %d steps is %.2f of the trace (max %.2f)", stats.LongestRun, frac, t.MaxRunFraction))
		}
	}
	if stats.LabelDoorChi2 > t.MaxLabelDoorChi2 {
		reasons = append(reasons, fmt.Sprintf("label-door chi-square %.1f (max %.1f)", stats.LabelDoorChi2, t.MaxLabelDoorChi2))
	}
	if stats.MissingTransitions > t.MaxMissingTransitions {
		reasons = append(reasons, fmt.Sprintf("%d transitions never observed (max %d)", stats.MissingTransitions, t.MaxMissingTransitions))
	}
	if stats.Distinguishable < t.MinDistinguishable {
		reasons = append(reasons, fmt.Sprintf("only %.2f of equal-label steps are distinguishable (min %.2f)", stats.Distinguishable, t.MinDistinguishable))
	}

	return Verdict{
		Favorable: len(reasons) == 0,
		Stats:     stats,
		Reasons:   reasons,
	}
}

// bucketSizes returns how many of n rooms carry each label when labels are
// assigned round-robin.
func bucketSizes(n int) [aedificium.NumLabels]int {
	var sizes [aedificium.NumLabels]int
	for r := 0; r < n; r++ {
		sizes[r%aedificium.NumLabels]++
	}
	return sizes
}

// Compute returns the statistics of a trace that matches its plan.
func Compute(plan aedificium.RoutePlan, trace aedificium.LabelTrace, n int, labelling Labelling) Stats {
	var s Stats

	run := 0
	for i, l := range trace {
		s.LabelCounts[l]++
		if i > 0 && trace[i-1] == l {
			run++
		} else {
			run = 1
		}
		if run > s.LongestRun {
			s.LongestRun = run
		}
	}
	// sizes[k]/total is the share of steps expected on label k
	sizes, total := s.LabelCounts, len(trace)
	if labelling == RoundRobinLabels {
		sizes, total = bucketSizes(n), n
	}
	possible := 0
	for k, size := range sizes {
		if size == 0 {
			continue
		}
		possible++
		if s.LabelCounts[k] == 0 {
			s.MissingLabels++
		}
	}

	var table [aedificium.NumLabels][aedificium.NumDoors]int
	var seen [numTransitions]bool
	for i, d := range plan {
		a, b := trace[i], trace[i+1]
		table[a][d]++
		idx := (int(a)*aedificium.NumDoors+int(d))*aedificium.NumLabels + int(b)
		if !seen[idx] {
			seen[idx] = true
			s.Transitions++
		}
	}
	for k, size := range sizes {
		if size == 0 {
			continue
		}
		expected := float64(size) / float64(total) * float64(len(plan)) / aedificium.NumDoors
		for d := 0; d < aedificium.NumDoors; d++ {
			dev := float64(table[k][d]) - expected
			s.LabelDoorChi2 += dev * dev / expected
		}
	}
	s.MissingTransitions = possible*aedificium.NumDoors*possible - s.Transitions
	if s.MissingTransitions < 0 {
		s.MissingTransitions = 0
	}

	diff := aedificium.Distinguishable(plan, trace)
	same, proven := 0, 0
	for i := range trace {
		for j := 0; j < i; j++ {
			if trace[i] != trace[j] {
				continue
			}
			same++
			if diff[i][j] {
				proven++
			}
		}
	}
	if same > 0 {
		s.Distinguishable = float64(proven) / float64(same)
	} else {
		s.Distinguishable = 1
	}
	return s
}
