package engine

import "fmt"

// faultFromPanic turns a recovered panic value into an error, so Scope.Fork
// can report handler panics through the same onFault path as handler
// errors instead of crashing the actor's goroutine.
func faultFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("effect panicked: %w", err)
	}
	return fmt.Errorf("effect panicked: %v", r)
}
