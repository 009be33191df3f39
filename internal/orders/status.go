package orders

// Status is the lifecycle position of a batch as reported in events.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusResolved  Status = "RESOLVED"
	StatusDiscarded Status = "DISCARDED"
)

// State classifies an edited item set at adjustment time. It is never stored.
type State string

const (
	StateActive    State = "ACTIVE"
	StateExhausted State = "EXHAUSTED"
)

func Classify(items []LineItem) State {
	for _, it := range items {
		if it.Quantity > 0 {
			return StateActive
		}
	}
	return StateExhausted
}

// Outcome is what ApplyAdjustment did with a batch.
type Outcome string

const (
	OutcomeResolved Outcome = "RESOLVED"
	OutcomeUpdated  Outcome = "UPDATED"
	OutcomeNoOp     Outcome = "NOOP"
)

// Resolution records why a batch became an order.
type Resolution string

const (
	ResolutionFullDelivery   Resolution = "FULL_DELIVERY"
	ResolutionAdjustedToZero Resolution = "ADJUSTED_TO_ZERO"
	ResolutionRecovered      Resolution = "RECOVERED"
)
