package gate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds are the classification limits. They are calibrated offline and
// loaded from configuration rather than compiled in.
type Thresholds struct {
	MaxMissingLabels      int     `yaml:"maxMissingLabels"`
	MaxRunFraction        float64 `yaml:"maxRunFraction"`
	MaxLabelDoorChi2      float64 `yaml:"maxLabelDoorChi2"`
	MaxMissingTransitions int     `yaml:"maxMissingTransitions"`
	MinDistinguishable    float64 `yaml:"minDistinguishable"`
}

// DefaultThresholds rejects only traces that are clearly degenerate. With
// round-robin labels that covers a label that exists but was never seen and
// a walk that stayed on one label for a quarter of the trace. Under either
// labelling, doors and labels must not be badly correlated.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxMissingLabels:      0,
		MaxRunFraction:        0.25,
		MaxLabelDoorChi2:      150,
		MaxMissingTransitions: numTransitions,
		MinDistinguishable:    0,
	}
}

// Permissive accepts every well-formed trace.
func Permissive() Thresholds {
	return Thresholds{
		MaxMissingLabels:      math.MaxInt,
		MaxRunFraction:        1,
		MaxLabelDoorChi2:      math.MaxFloat64,
		MaxMissingTransitions: math.MaxInt,
		MinDistinguishable:    0,
	}
}

func (t Thresholds) Validate() error {
	var errs []error
	if t.MaxMissingLabels < 0 {
		errs = append(errs, fmt.Errorf("maxMissingLabels must not be negative"))
	}
	if t.MaxRunFraction < 0 || t.MaxRunFraction > 1 {
		errs = append(errs, fmt.Errorf("maxRunFraction must be within [0, 1]"))
	}
	if t.MaxLabelDoorChi2 < 0 {
		errs = append(errs, fmt.Errorf("maxLabelDoorChi2 must not be negative"))
	}
	if t.MaxMissingTransitions < 0 {
		errs = append(errs, fmt.Errorf("maxMissingTransitions must not be negative"))
	}
	if t.MinDistinguishable < 0 || t.MinDistinguishable > 1 {
		errs = append(errs, fmt.Errorf("minDistinguishable must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// ReadThresholds decodes YAML thresholds on top of DefaultThresholds.
// Unknown keys are rejected.
func ReadThresholds(r io.Reader) (Thresholds, error) {
	t := DefaultThresholds()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Thresholds{}, fmt.Errorf("error decoding gate thresholds: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("invalid gate thresholds: %w", err)
	}
	return t, nil
}

// LoadThresholds reads thresholds from a YAML file. Environment variables in
// the path are expanded.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return Thresholds{}, err
	}
	return ReadThresholds(bytes.NewReader(data))
}
