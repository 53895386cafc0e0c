package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrContainerNotEmpty rejects deleting a container that still holds items.
	ErrContainerNotEmpty = fmt.Errorf("container is not empty")
	// ErrOrderPrecisionExhausted means no integer gap remains between two
	// neighbouring positions. The caller must reindex the container and retry.
	ErrOrderPrecisionExhausted = fmt.Errorf("no headroom left between positions")
	// ErrNestedThreadNotAllowed rejects replying to a message that is itself a reply.
	ErrNestedThreadNotAllowed = fmt.Errorf("nested threads are not allowed")

	ErrUnknownRoom = fmt.Errorf("unknown room")
	ErrUnknownUser = fmt.Errorf("unknown user")
	ErrUnknownItem = fmt.Errorf("unknown item")
)
