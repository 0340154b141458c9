package aedificium_test

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aedificium/mapper/pkg/aedificium"
)

func TestAedificium(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Aedificium Suite")
}

func conn(r1, d1, r2, d2 int) aedificium.Connection {
	return aedificium.Connection{
		From: aedificium.Endpoint{Room: r1, Door: aedificium.Door(d1)},
		To:   aedificium.Endpoint{Room: r2, Door: aedificium.Door(d2)},
	}
}

// threeRooms has two parallel edges between rooms 0 and 1 and a self-loop in
// every room.
func threeRooms() aedificium.Guess {
	return aedificium.Guess{
		Rooms: []aedificium.Label{0, 1, 2},
		Start: 0,
		Connections: []aedificium.Connection{
			conn(0, 0, 1, 0),
			conn(0, 1, 1, 1),
			conn(0, 2, 0, 3),
			conn(0, 4, 2, 0),
			conn(0, 5, 2, 1),
			conn(1, 2, 2, 2),
			conn(1, 3, 1, 4),
			conn(1, 5, 2, 3),
			conn(2, 4, 2, 5),
		},
	}
}

func relabel(guess aedificium.Guess, perm []int) aedificium.Guess {
	out := aedificium.Guess{
		Rooms: make([]aedificium.Label, len(guess.Rooms)),
		Start: perm[guess.Start],
	}
	for r, l := range guess.Rooms {
		out.Rooms[perm[r]] = l
	}
	for _, c := range guess.Connections {
		out.Connections = append(out.Connections, conn(perm[c.From.Room], int(c.From.Door), perm[c.To.Room], int(c.To.Door)))
	}
	return out
}

var _ = Describe("RoutePlan", func() {
	It("should round trip through its wire form", func() {
		plan, err := aedificium.ParsePlan("012345")
		Expect(err).ToNot(HaveOccurred())
		Expect(plan).To(Equal(aedificium.RoutePlan{0, 1, 2, 3, 4, 5}))
		Expect(plan.String()).To(Equal("012345"))
	})
	It("should reject doors outside 0-5", func() {
		_, err := aedificium.ParsePlan("0126")
		Expect(err).To(HaveOccurred())
	})
	It("should reject plans that are too short", func() {
		plan := make(aedificium.RoutePlan, aedificium.PlanLength(3)-1)
		err := plan.Validate(3)
		Expect(errors.Is(err, aedificium.ErrPlanTooShort)).To(BeTrue())
		Expect(errors.Is(err, aedificium.ErrPlanLength)).To(BeTrue())
		var lengthErr *aedificium.PlanLengthError
		Expect(errors.As(err, &lengthErr)).To(BeTrue())
		Expect(lengthErr.Length).To(Equal(53))
	})
	It("should reject plans that are too long", func() {
		plan := make(aedificium.RoutePlan, aedificium.PlanLength(3)+1)
		err := plan.Validate(3)
		Expect(errors.Is(err, aedificium.ErrPlanTooLong)).To(BeTrue())
		Expect(errors.Is(err, aedificium.ErrPlanTooShort)).To(BeFalse())
	})
	It("should accept plans of exactly 18n doors", func() {
		plan := make(aedificium.RoutePlan, aedificium.PlanLength(3))
		Expect(plan.Validate(3)).To(Succeed())
	})
})

var _ = Describe("LabelTrace", func() {
	It("should reject traces that do not match the plan length", func() {
		plan := aedificium.RoutePlan{0, 1, 2}
		for _, trace := range []aedificium.LabelTrace{{0, 1, 2}, {0, 1, 2, 3, 0}} {
			err := trace.Validate(plan)
			Expect(errors.Is(err, aedificium.ErrMalformedTrace)).To(BeTrue())
		}
		Expect(aedificium.LabelTrace{0, 1, 2, 3}.Validate(plan)).To(Succeed())
	})
	It("should reject judge labels outside 0-3", func() {
		_, err := aedificium.TraceFromInts([]int{0, 4})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Graph", func() {
	var g *aedificium.Graph

	BeforeEach(func() {
		var err error
		g, err = aedificium.GraphFromGuess(threeRooms())
		Expect(err).ToNot(HaveOccurred())
	})

	It("should walk a plan through self-loops and parallel edges", func() {
		plan, err := aedificium.ParsePlan("0125254")
		Expect(err).ToNot(HaveOccurred())
		Expect(g.Walk(plan).String()).To(Equal("01002122"))
	})

	It("should emit every passage exactly once", func() {
		conns := g.Connections()
		Expect(conns).To(HaveLen(9))
		Expect(conns).To(ConsistOf(threeRooms().Connections))
	})

	It("should reject guesses that reuse an endpoint", func() {
		guess := threeRooms()
		guess.Connections[8] = conn(2, 4, 0, 0)
		_, err := aedificium.GraphFromGuess(guess)
		Expect(errors.Is(err, aedificium.ErrSaturation)).To(BeTrue())
	})

	It("should reject guesses with missing passages", func() {
		guess := threeRooms()
		guess.Connections = guess.Connections[:8]
		_, err := aedificium.GraphFromGuess(guess)
		Expect(errors.Is(err, aedificium.ErrSaturation)).To(BeTrue())
	})

	It("should treat relabeled maps as equivalent", func() {
		other, err := aedificium.GraphFromGuess(relabel(threeRooms(), []int{2, 0, 1}))
		Expect(err).ToNot(HaveOccurred())
		Expect(aedificium.Equivalent(g, other)).To(BeTrue())
	})

	It("should ignore which doors realise a passage between the same rooms", func() {
		guess := threeRooms()
		guess.Connections[5] = conn(1, 2, 2, 3)
		guess.Connections[7] = conn(1, 5, 2, 2)
		other, err := aedificium.GraphFromGuess(guess)
		Expect(err).ToNot(HaveOccurred())
		Expect(aedificium.Equivalent(g, other)).To(BeTrue())
	})

	It("should tell apart maps with different labels", func() {
		guess := threeRooms()
		guess.Rooms[2] = 3
		other, err := aedificium.GraphFromGuess(guess)
		Expect(err).ToNot(HaveOccurred())
		Expect(aedificium.Equivalent(g, other)).To(BeFalse())
	})

	It("should marshal guesses in the judge's wire form", func() {
		data, err := json.Marshal(aedificium.Guess{
			Rooms:       []aedificium.Label{1},
			Start:       0,
			Connections: []aedificium.Connection{conn(0, 0, 0, 1)},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal(`{"rooms":[1],"startingRoom":0,"connections":[{"from":{"room":0,"door":0},"to":{"room":0,"door":1}}]}`))
	})
})
