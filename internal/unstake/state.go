package unstake

import (
	"time"

	"github.com/K-tang-mkv/bittensor-strat/internal/domain"
)

// State is a polling loop state.
type State string

const (
	StateFetch     State = "FETCH"
	StateEvaluate  State = "EVALUATE"
	StateExecute   State = "EXECUTE"
	StateWaitShort State = "WAIT_SHORT"
	StateWaitLong  State = "WAIT_LONG"
)

// Transition is the outcome of one Step.
type Transition struct {
	// Next is the state the cycle ended in. FETCH always follows after Wait.
	Next State
	Wait time.Duration

	// Executed is set when the cycle submitted an unstake.
	Executed *domain.ExecutionRecord

	// Err is a fetch error that was logged and will be retried.
	Err error
}
