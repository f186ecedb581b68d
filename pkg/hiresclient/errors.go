package hiresclient

import "fmt"

// HandleNotFoundError means the daemon no longer knows the handle,
// usually because its lease expired and the sweeper released it.
type HandleNotFoundError struct {
	HandleID string
}

func (e *HandleNotFoundError) Error() string {
	return fmt.Sprintf("handle not found: id=%s (lease expired?)", e.HandleID)
}

type UnexpectedStatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s %s -> %d body=%q", e.Method, e.Path, e.Code, e.Body)
}
