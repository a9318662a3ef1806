//go:build unix && !linux

package tcp

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type pollPoller struct {
	mu  sync.Mutex
	fds []int
}

func newPoller() (poller, error) {
	return &pollPoller{}, nil
}

func (p *pollPoller) Add(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if slices.Contains(p.fds, fd) {
		return fmt.Errorf("poll add %d: already registered", fd)
	}
	p.fds = append(p.fds, fd)
	return nil
}

func (p *pollPoller) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := slices.Index(p.fds, fd)
	if i < 0 {
		return fmt.Errorf("poll remove %d: not registered", fd)
	}
	p.fds = slices.Delete(p.fds, i, i+1)
	return nil
}

func (p *pollPoller) Wait(timeout time.Duration) ([]int, error) {
	p.mu.Lock()
	set := make([]unix.PollFd, len(p.fds))
	for i, fd := range p.fds {
		set[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}
	p.mu.Unlock()

	n, err := unix.Poll(set, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll: %w", err)
	}

	ready := make([]int, 0, n)
	for _, pfd := range set {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, int(pfd.Fd))
		}
	}
	return ready, nil
}

func (p *pollPoller) Close() error {
	p.mu.Lock()
	p.fds = nil
	p.mu.Unlock()
	return nil
}
