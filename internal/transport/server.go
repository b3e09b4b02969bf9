package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/forgegames/platform/pkg/metrics"
)

// Server runs the accept loop for the control-plane socket, handing each
// accepted connection to its own worker goroutine. One task per connection;
// the accept loop itself is the only shared mutable resource.
type Server struct {
	Addr    string
	Config  ConnConfig
	Disp    Dispatcher
	Logger  *slog.Logger
	Metrics *metrics.Registry

	mu       sync.Mutex
	listener net.Listener
}

// ListenAndServe opens the listener and accepts connections until ctx is
// cancelled or a fatal accept error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.Logger.Info("control plane listening", "addr", s.Addr)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if ok := asNetTemporary(err, &ne); ok {
				s.Logger.Warn("temporary accept error", "error", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newConn(nc, s.Config, s.Disp, s.Logger, s.Metrics)
			c.serve(ctx)
		}()
	}
}

func asNetTemporary(err error, target *net.Error) bool {
	ne, ok := err.(net.Error)
	if !ok {
		return false
	}
	*target = ne
	return ne.Timeout()
}
