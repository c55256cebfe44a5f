package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStepper indicates a discrete rollout was requested for a
	// model that only provides a continuous-time derivative.
	ErrNotStepper = errors.New("sim: dynamics does not implement a discrete recurrence")

	// ErrStepTooSmall indicates the adaptive timestep underflowed MinDt.
	ErrStepTooSmall = errors.New("sim: adaptive timestep below minimum")
)

// SimError records where inside a rollout a failure occurred.
type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
