package tcp

import "time"

// poller reports which registered descriptors are ready to read. It is
// driven from a single goroutine; Close may be called from another.
type poller interface {
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks for at most timeout. An interrupted wait returns no
	// descriptors and no error.
	Wait(timeout time.Duration) ([]int, error)
	Close() error
}
