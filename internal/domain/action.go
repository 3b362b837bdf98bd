package domain

// Action classifies what a whale transaction did.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionStake    Action = "STAKE"
	ActionTransfer Action = "TRANSFER"
)

// String returns the string representation of Action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is a valid value.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionStake, ActionTransfer:
		return true
	}
	return false
}
