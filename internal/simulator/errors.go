package simulator

import "fmt"

// ExecutionError aborts only the current probe. The journal is restored
// before it surfaces, so the engine stays reusable.
type ExecutionError struct {
	Reason     string
	OutOfGas   bool
	ReturnData []byte
}

func (e *ExecutionError) Error() string {
	if e.OutOfGas {
		return fmt.Sprintf("execution failed: out of gas (%s)", e.Reason)
	}
	return fmt.Sprintf("execution failed: %s", e.Reason)
}
