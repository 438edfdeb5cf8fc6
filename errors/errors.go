package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrBusClosed          = fmt.Errorf("fan-out bus closed")
	ErrNoEnvelope         = fmt.Errorf("no envelope available")
	ErrInvalidDisplayName = fmt.Errorf("invalid display name")
	ErrMalformedPayload   = fmt.Errorf("malformed payload")
	ErrDeliveryFailed     = fmt.Errorf("delivery to client failed")
	ErrTransport          = fmt.Errorf("transport error")
)

// LaggedError is returned once by a subscription after its queue overflowed.
// Missed is the number of envelopes dropped without being consumed.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d envelopes missed", e.Missed)
}

