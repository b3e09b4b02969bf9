package launcher

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/forgegames/platform/internal/protocol"
)

// allocatePort probes a random candidate port within the configured
// (inclusive) range by binding a listener to it and closing it again,
// retrying on collision with an already-reserved port or a bind failure, up
// to cfg.PortAllocRetries times. The port stays reserved in l.reservedPorts
// until the room terminates.
func (l *Launcher) allocatePort() (int, error) {
	retries := l.cfg.PortAllocRetries
	if retries <= 0 {
		retries = 20
	}
	lo, hi := l.cfg.PortRangeMin, l.cfg.PortRangeMax
	if hi < lo {
		hi = lo
	}

	for i := 0; i < retries; i++ {
		candidate := lo + rand.Intn(hi-lo+1)

		l.mu.Lock()
		if l.reservedPorts[candidate] {
			l.mu.Unlock()
			continue
		}
		l.mu.Unlock()

		ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", candidate))
		if err != nil {
			continue
		}
		ln.Close()

		l.mu.Lock()
		if l.reservedPorts[candidate] {
			l.mu.Unlock()
			continue
		}
		l.reservedPorts[candidate] = true
		l.mu.Unlock()

		return candidate, nil
	}

	return 0, protocol.NewInternal("unable to allocate port", fmt.Errorf("exhausted %d attempts", retries))
}

// releasePort frees a previously reserved port for reuse by a later match.
func (l *Launcher) releasePort(port int) {
	if port == 0 {
		return
	}
	l.mu.Lock()
	delete(l.reservedPorts, port)
	l.mu.Unlock()
}
