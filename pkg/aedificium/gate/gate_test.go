package gate_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aedificium/mapper/pkg/aedificium"
	"github.com/aedificium/mapper/pkg/aedificium/gate"
)

func TestGate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gate Suite")
}

func mustPlan(s string) aedificium.RoutePlan {
	p, err := aedificium.ParsePlan(s)
	Expect(err).ToNot(HaveOccurred())
	return p
}

func mustTrace(s string) aedificium.LabelTrace {
	values := make([]int, len(s))
	for i, c := range s {
		values[i] = int(c - '0')
	}
	tr, err := aedificium.TraceFromInts(values)
	Expect(err).ToNot(HaveOccurred())
	return tr
}

var _ = Describe("Compute", func() {
	It("should count labels, runs and transitions", func() {
		s := gate.Compute(mustPlan("0123"), mustTrace("00120"), 4, gate.RoundRobinLabels)
		Expect(s.LabelCounts).To(Equal([aedificium.NumLabels]int{3, 1, 1, 0}))
		Expect(s.MissingLabels).To(Equal(1))
		Expect(s.LongestRun).To(Equal(2))
		Expect(s.Transitions).To(Equal(4))
		Expect(s.MissingTransitions).To(Equal(96 - 4))
	})

	It("should only expect labels that some room carries", func() {
		s := gate.Compute(mustPlan("01"), mustTrace("010"), 2, gate.RoundRobinLabels)
		Expect(s.MissingLabels).To(Equal(0))
		Expect(s.MissingTransitions).To(Equal(2*6*2 - 2))
	})

	It("should only expect observed labels when labels are not assumed", func() {
		// a map without rooms labelled 1 or 3
		s := gate.Compute(mustPlan("0123"), mustTrace("00220"), 4, gate.ObservedLabels)
		Expect(s.MissingLabels).To(Equal(0))
		Expect(s.Transitions).To(Equal(4))
		Expect(s.MissingTransitions).To(Equal(2*6*2 - 4))

		s = gate.Compute(mustPlan("0123"), mustTrace("00220"), 4, gate.RoundRobinLabels)
		Expect(s.MissingLabels).To(Equal(2))
	})

	It("should measure how many equal-label steps are provably different rooms", func() {
		s := gate.Compute(mustPlan("00"), mustTrace("001"), 2, gate.ObservedLabels)
		Expect(s.Distinguishable).To(Equal(1.0))

		s = gate.Compute(mustPlan("00"), mustTrace("010"), 2, gate.ObservedLabels)
		Expect(s.Distinguishable).To(Equal(0.0))
	})

	It("should score a door-label table that matches balanced labels as zero", func() {
		// two rooms, each door taken once from each label
		s := gate.Compute(mustPlan("001122334455"), mustTrace("0101010101010"), 2, gate.RoundRobinLabels)
		Expect(s.LabelDoorChi2).To(BeNumerically("~", 0, 1e-9))
	})
})

var _ = Describe("Gate", func() {
	It("should reject traces that do not fit the plan", func() {
		v := gate.New(gate.Permissive()).Classify(mustPlan("01"), mustTrace("01"), 1)
		Expect(v.Favorable).To(BeFalse())
		Expect(errors.Is(v.Err(), aedificium.ErrUnfavorableTrace)).To(BeTrue())
	})

	It("should accept any well-formed trace when permissive", func() {
		v := gate.New(gate.Permissive()).Classify(mustPlan("0000"), mustTrace("00000"), 4)
		Expect(v.Favorable).To(BeTrue())
		Expect(v.Err()).ToNot(HaveOccurred())
	})

	It("should reject degenerate traces by default under round-robin labels", func() {
		g := gate.New(gate.DefaultThresholds(), gate.WithLabelling(gate.RoundRobinLabels))
		Expect(g.Labelling()).To(Equal(gate.RoundRobinLabels))
		v := g.Classify(mustPlan("0000"), mustTrace("00000"), 4)
		Expect(v.Favorable).To(BeFalse())
		Expect(v.Reasons).To(ContainElement(ContainSubstring("labels never observed")))
		Expect(v.Reasons).To(ContainElement(ContainSubstring("label run")))
		Expect(v.Err().Error()).To(ContainSubstring("unfavorable"))
	})

	It("should not hold a map's own labelling against it by default", func() {
		g := gate.New(gate.DefaultThresholds())
		Expect(g.Labelling()).To(Equal(gate.ObservedLabels))

		// every room of this map carries label 2
		v := g.Classify(mustPlan("012345"), mustTrace("2222222"), 2)
		Expect(v.Favorable).To(BeTrue(), "%v", v.Reasons)

		// rooms labelled 0 and 2 only
		v = g.Classify(mustPlan("0123"), mustTrace("00220"), 4)
		Expect(v.Favorable).To(BeTrue(), "%v", v.Reasons)
	})

	It("should report every violated threshold", func() {
		t := gate.Permissive()
		t.MinDistinguishable = 0.5
		v := gate.New(t).Classify(mustPlan("00"), mustTrace("010"), 2)
		Expect(v.Reasons).To(HaveLen(1))
		Expect(v.Reasons[0]).To(ContainSubstring("distinguishable"))
	})
})

var _ = Describe("Thresholds", func() {
	It("should overlay YAML on the defaults", func() {
		t, err := gate.ReadThresholds(strings.NewReader("maxRunFraction: 0.5\nminDistinguishable: 0.1\n"))
		Expect(err).ToNot(HaveOccurred())
		want := gate.DefaultThresholds()
		want.MaxRunFraction = 0.5
		want.MinDistinguishable = 0.1
		Expect(t).To(Equal(want))
	})

	It("should use the defaults for an empty document", func() {
		t, err := gate.ReadThresholds(strings.NewReader(""))
		Expect(err).ToNot(HaveOccurred())
		Expect(t).To(Equal(gate.DefaultThresholds()))
	})

	It("should reject unknown keys and out of range values", func() {
		_, err := gate.ReadThresholds(strings.NewReader("maxRun: 0.5\n"))
		Expect(err).To(HaveOccurred())
		_, err = gate.ReadThresholds(strings.NewReader("maxRunFraction: 2\n"))
		Expect(err).To(HaveOccurred())
	})

	It("should load thresholds from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "gate.yaml")
		Expect(os.WriteFile(path, []byte("maxLabelDoorChi2: 42\n"), 0o600)).To(Succeed())
		t, err := gate.LoadThresholds(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(t.MaxLabelDoorChi2).To(Equal(42.0))
		Expect(gate.New(t).Thresholds()).To(Equal(t))
	})
})
