package control

import "fmt"

// FitError reports that the reference path could not be fitted this cycle,
// typically because the simulator supplied too few waypoints. The cycle is
// skipped; the connection survives.
type FitError struct {
	Waypoints int
	Err       error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("failed to fit reference path (%d waypoints): %v", e.Waypoints, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }

// OptimizerError reports that the optimizer could not produce a solution for
// this cycle's state. The loop falls back to a safe neutral actuation.
type OptimizerError struct {
	Err error
}

func (e *OptimizerError) Error() string {
	return fmt.Sprintf("optimizer failed to solve: %v", e.Err)
}

func (e *OptimizerError) Unwrap() error { return e.Err }
