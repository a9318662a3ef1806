//go:build !unix

package tcp

import "errors"

var errPollerUnsupported = errors.New("multiplexed mode is not supported on this platform")

func newPoller() (poller, error) {
	return nil, errPollerUnsupported
}
