// Package domain contains the core domain types for the execution context.
package domain

// OrderState identifies a stage in the life of one triangle leg.
//
// States are totally ordered by an explicit rank table, not by
// declaration order. The rank is a progress/severity scale: everything
// below StateComplete is a forward order still being worked, the
// terminal forward outcomes sit between StateComplete and
// StateReverseUnsent, and the whole reverse (unwind) range ranks above
// all forward states.
type OrderState int

const (
	StateUnsent OrderState = iota
	StatePending
	StateActive
	StatePartialFill
	StateToCancel
	StatePendingCancel
	StatePendingPartialToFull
	StateHanging
	StateComplete
	StateCanceled
	StateFailed
	StateReverseUnsent
	StateReversePending
	StateReversePartialToCancel
	StateReverseActive
	StateReverseComplete
	StateReverseFailed
)

// stateRanks is the explicit severity scale. Gaps leave room without
// renumbering.
var stateRanks = map[OrderState]int{
	StateUnsent:                 0,
	StatePending:                50,
	StateActive:                 100,
	StatePartialFill:            150,
	StateToCancel:               200,
	StatePendingCancel:          250,
	StatePendingPartialToFull:   300,
	StateHanging:                400,
	StateComplete:               500,
	StateCanceled:               600,
	StateFailed:                 700,
	StateReverseUnsent:          800,
	StateReversePending:         850,
	StateReversePartialToCancel: 900,
	StateReverseActive:          950,
	StateReverseComplete:        1000,
	StateReverseFailed:          1100,
}

var stateNames = map[OrderState]string{
	StateUnsent:                 "UNSENT",
	StatePending:                "PENDING",
	StateActive:                 "ACTIVE",
	StatePartialFill:            "PARTIAL_FILL",
	StateToCancel:               "TO_CANCEL",
	StatePendingCancel:          "PENDING_CANCEL",
	StatePendingPartialToFull:   "PENDING_PARTIAL_TO_FULL",
	StateHanging:                "HANGING",
	StateComplete:               "COMPLETE",
	StateCanceled:               "CANCELED",
	StateFailed:                 "FAILED",
	StateReverseUnsent:          "REVERSE_UNSENT",
	StateReversePending:         "REVERSE_PENDING",
	StateReversePartialToCancel: "REVERSE_PARTIAL_TO_CANCEL",
	StateReverseActive:          "REVERSE_ACTIVE",
	StateReverseComplete:        "REVERSE_COMPLETE",
	StateReverseFailed:          "REVERSE_FAILED",
}

// Rank returns the state's position on the severity scale.
func (s OrderState) Rank() int {
	return stateRanks[s]
}

// Before reports whether s ranks strictly below other.
func (s OrderState) Before(other OrderState) bool {
	return s.Rank() < other.Rank()
}

// Past reports whether s ranks strictly above other.
func (s OrderState) Past(other OrderState) bool {
	return s.Rank() > other.Rank()
}

// AtOrPast reports whether s ranks at or above other.
func (s OrderState) AtOrPast(other OrderState) bool {
	return s.Rank() >= other.Rank()
}

// IsReverse reports whether the state belongs to the unwind range.
func (s OrderState) IsReverse() bool {
	return s.AtOrPast(StateReverseUnsent)
}

// String returns the canonical state name.
func (s OrderState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
