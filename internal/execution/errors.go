package execution

import (
	"errors"
	"fmt"
)

// ErrDuplicateSuppressed is returned when an opportunity with the same
// venue pair and kind executed within the dedup cooldown.
var ErrDuplicateSuppressed = errors.New("duplicate opportunity suppressed")

// ErrNoFallbackPool is returned when the second leg failed and no
// alternate pool for the pair is available.
var ErrNoFallbackPool = errors.New("no fallback pool available")

// SimulationError carries the program logs of a rejected simulation.
// A leg that simulates dirty is never signed or sent.
type SimulationError struct {
	Leg  string
	Err  interface{}
	Logs []string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%s simulation rejected: %v", e.Leg, e.Err)
}

// ConfirmationError marks a sent transaction that errored on chain or
// never reached confirmed commitment before the timeout.
type ConfirmationError struct {
	Leg       string
	Signature string
	Err       interface{}
}

func (e *ConfirmationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transaction %s failed: %v", e.Leg, e.Signature, e.Err)
	}
	return fmt.Sprintf("%s transaction %s not confirmed in time", e.Leg, e.Signature)
}
