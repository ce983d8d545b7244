package domain

// ActionType tags the intents the tracker can hand back to its owner.
type ActionType string

const (
	// ActionPlace submits the order to the exchange as sized.
	ActionPlace ActionType = "place"

	// ActionPlaceAllIn submits the order sized to exhaust the wallet
	// instead of matching the quoted amount.
	ActionPlaceAllIn ActionType = "place_all_in"

	// ActionCancel requests cancellation of the order on the exchange.
	ActionCancel ActionType = "cancel"
)

// Action is one intent returned by the tracker's decision procedure.
// The tracker performs no I/O itself; the owning strategy loop carries
// actions out against the exchange connector.
type Action struct {
	Type  ActionType
	Order *Order
}

func Place(o *Order) Action       { return Action{Type: ActionPlace, Order: o} }
func PlaceAllIn(o *Order) Action  { return Action{Type: ActionPlaceAllIn, Order: o} }
func Cancel(o *Order) Action      { return Action{Type: ActionCancel, Order: o} }
