package checkout

// State is the wizard position.
type State int

const (
	SelectingDelivery State = iota
	SelectingAddress
	SelectingPayment
	Reviewing
	Submitting
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case SelectingAddress:
		return "selecting_address"
	case SelectingPayment:
		return "selecting_payment"
	case Reviewing:
		return "reviewing"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "selecting_delivery"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// inWizard reports whether s depends on a live selection.
func (s State) inWizard() bool {
	return s == SelectingAddress || s == SelectingPayment || s == Reviewing || s == Failed
}
