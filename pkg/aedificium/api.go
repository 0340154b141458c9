package aedificium

import (
	"context"
	"fmt"
	"strings"
)

const (
	// NumDoors is the number of doors every room carries.
	NumDoors = 6
	// NumLabels is the number of distinct 2-bit room labels.
	NumLabels = 4
	// PlanLengthFactor fixes the route plan length at PlanLengthFactor * rooms.
	PlanLengthFactor = 18
)

// Door identifies one of the six doors of a room.
type Door int

// Label is the 2-bit value observed in a room.
type Label int

// PlanLength returns the only accepted route plan length for a problem
// with the given number of rooms.
func PlanLength(rooms int) int {
	return PlanLengthFactor * rooms
}

// RoutePlan is the pre-declared sequence of doors walked during a single
// exploration.
type RoutePlan []Door

// ParsePlan reads the wire representation of a route plan, a string of
// decimal digits 0-5.
func ParsePlan(s string) (RoutePlan, error) {
	plan := make(RoutePlan, 0, len(s))
	for i, c := range s {
		if c < '0' || c >= '0'+NumDoors {
			return nil, fmt.Errorf("invalid door %q at position %d", c, i)
		}
		plan = append(plan, Door(c-'0'))
	}
	return plan, nil
}

func (p RoutePlan) String() string {
	var b strings.Builder
	b.Grow(len(p))
	for _, d := range p {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

// Validate checks that the plan has exactly PlanLength(rooms) valid doors.
func (p RoutePlan) Validate(rooms int) error {
	if want := PlanLength(rooms); len(p) != want {
		return &PlanLengthError{Rooms: rooms, Length: len(p)}
	}
	for i, d := range p {
		if d < 0 || d >= NumDoors {
			return fmt.Errorf("invalid door %d at position %d", d, i)
		}
	}
	return nil
}

// LabelTrace is the sequence of labels observed while walking a RoutePlan.
// trace[0] is the label of the starting room and trace[i] the label of the
// room reached after the i-th move.
type LabelTrace []Label

// TraceFromInts converts a judge response into a LabelTrace.
func TraceFromInts(values []int) (LabelTrace, error) {
	trace := make(LabelTrace, len(values))
	for i, v := range values {
		if v < 0 || v >= NumLabels {
			return nil, fmt.Errorf("invalid label %d at position %d", v, i)
		}
		trace[i] = Label(v)
	}
	return trace, nil
}

// Validate checks that the trace matches the plan it was observed for.
// A trace of the wrong length is never truncated or padded.
func (tr LabelTrace) Validate(plan RoutePlan) error {
	if len(tr) != len(plan)+1 {
		return &MalformedTraceError{PlanLength: len(plan), TraceLength: len(tr)}
	}
	return nil
}

func (tr LabelTrace) String() string {
	var b strings.Builder
	b.Grow(len(tr))
	for _, l := range tr {
		b.WriteByte(byte('0' + l))
	}
	return b.String()
}

// Endpoint is a (room, door) pair.
type Endpoint struct {
	Room int  `json:"room"`
	Door Door `json:"door"`
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%d:%d", e.Room, e.Door)
}

// Less orders endpoints by room, then door.
func (e Endpoint) Less(o Endpoint) bool {
	if e.Room != o.Room {
		return e.Room < o.Room
	}
	return e.Door < o.Door
}

// Connection is one physical passage. The reverse direction is implicit.
type Connection struct {
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}

// Guess is the map submitted to the judge.
type Guess struct {
	Rooms       []Label      `json:"rooms"`
	Start       int          `json:"startingRoom"`
	Connections []Connection `json:"connections"`
}

// Judge is the external service that owns the hidden map.
type Judge interface {
	// NumRooms returns the number of rooms of the hidden map.
	NumRooms() int
	// Explore walks every plan from the starting room and returns one label
	// sequence per plan, each of length len(plan)+1.
	Explore(ctx context.Context, plans []string) ([][]int, error)
	// Guess reports whether the submitted map is observationally
	// equivalent to the hidden one.
	Guess(ctx context.Context, guess Guess) (bool, error)
}
