package decoder

import (
	"fmt"

	"github.com/aedificium/mapper/internal/cnf"
	"github.com/aedificium/mapper/internal/encoder"
	"github.com/aedificium/mapper/pkg/aedificium"
)

// Decode reads a map out of a model of enc.Formula. The map is checked for
// saturation and replayed against the plan before it is returned; a failure
// of either check is a defect of the encoding, not a property of the input.
func Decode(enc *encoder.Encoding, model cnf.Model) (*aedificium.Guess, error) {
	g, err := DecodeGraph(enc, model)
	if err != nil {
		return nil, err
	}
	guess := g.Guess()
	return &guess, nil
}

// DecodeGraph is Decode without the conversion to the wire form.
func DecodeGraph(enc *encoder.Encoding, model cnf.Model) (*aedificium.Graph, error) {
	n := enc.Rooms
	g := &aedificium.Graph{
		Labels:    make([]aedificium.Label, n),
		Start:     enc.Start(),
		Adjacency: make([][aedificium.NumDoors]aedificium.Endpoint, n),
	}

	for r := 0; r < n; r++ {
		found := 0
		for k := aedificium.Label(0); k < aedificium.NumLabels; k++ {
			if model.Value(enc.Lab(r, k)) {
				g.Labels[r] = k
				found++
			}
		}
		if found != 1 {
			return nil, fmt.Errorf("%w: room %d has %d labels", aedificium.ErrSaturation, r, found)
		}
	}

	if m, ok := enc.Loc(0, g.Start); !ok || !model.Value(m) {
		return nil, fmt.Errorf("%w: model does not start in room %d", aedificium.ErrEncodingContradiction, g.Start)
	}

	for r := 0; r < n; r++ {
		for d := aedificium.Door(0); d < aedificium.NumDoors; d++ {
			a := aedificium.Endpoint{Room: r, Door: d}
			var partners []aedificium.Endpoint
			for to := 0; to < n; to++ {
				for dd := aedificium.Door(0); dd < aedificium.NumDoors; dd++ {
					b := aedificium.Endpoint{Room: to, Door: dd}
					if a != b && model.Value(enc.Pair(a, b)) {
						partners = append(partners, b)
					}
				}
			}
			if len(partners) != 1 {
				return nil, fmt.Errorf("%w: %s is paired with %d endpoints %v", aedificium.ErrSaturation, a, len(partners), partners)
			}
			b := partners[0]
			if !model.Value(enc.Dest(r, d, b.Room)) {
				return nil, fmt.Errorf("%w: %s is paired with %s but leads elsewhere", aedificium.ErrSaturation, a, b)
			}
			g.Adjacency[r][d] = b
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := Replay(g, enc.Plan, enc.Trace); err != nil {
		return nil, err
	}
	return g, nil
}

// Replay walks plan on g and compares the labels with trace.
func Replay(g *aedificium.Graph, plan aedificium.RoutePlan, trace aedificium.LabelTrace) error {
	got := g.Walk(plan)
	if len(got) != len(trace) {
		return fmt.Errorf("%w: replay has %d labels, trace has %d", aedificium.ErrReplayMismatch, len(got), len(trace))
	}
	for i := range got {
		if got[i] != trace[i] {
			return fmt.Errorf("%w: step %d shows label %d, trace has %d", aedificium.ErrReplayMismatch, i, got[i], trace[i])
		}
	}
	return nil
}
