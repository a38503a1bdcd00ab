package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn matches any *SpawnError.
	ErrSpawn = errors.New("worker spawn failed")

	// ErrChannel matches any *ChannelError.
	ErrChannel = errors.New("worker channel closed")
)

// SpawnError reports that a worker for Path could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn worker for %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawn, e.Err}
}

// ChannelError reports that the worker goroutine for Path is gone and can
// no longer take requests.
type ChannelError struct {
	Path string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("worker for %s is not accepting requests", e.Path)
}

func (e *ChannelError) Is(target error) bool {
	return target == ErrChannel
}
