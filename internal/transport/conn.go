package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/pkg/metrics"
)

const (
	violationWindow       = 10 * time.Second
	violationMaxInWindow  = 5
	singleViolationCooldown = 1 * time.Second
)

// Dispatcher routes a decoded request envelope to its handler and returns the
// response envelope to write back. Implemented by internal/dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, env protocol.Envelope) protocol.Envelope
}

// ConnConfig carries the per-connection framing parameters.
type ConnConfig struct {
	InactivityTimeout time.Duration
	MaxLineBytes      int
	RateLimitPerSec   int
}

// conn runs the read -> dispatch -> write cycle for one accepted socket until
// EOF, inactivity timeout, context cancellation, or sustained protocol abuse.
type conn struct {
	netConn net.Conn
	cfg     ConnConfig
	disp    Dispatcher
	logger  *slog.Logger
	metrics *metrics.Registry

	limiter    *rate.Limiter
	violations *violationTracker

	writeMu sync.Mutex
}

func newConn(nc net.Conn, cfg ConnConfig, disp Dispatcher, logger *slog.Logger, m *metrics.Registry) *conn {
	rps := cfg.RateLimitPerSec
	if rps <= 0 {
		rps = 50
	}
	return &conn{
		netConn:    nc,
		cfg:        cfg,
		disp:       disp,
		logger:     logger,
		metrics:    m,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		violations: newViolationTracker(violationWindow, violationMaxInWindow),
	}
}

func (c *conn) serve(ctx context.Context) {
	defer c.netConn.Close()
	if c.metrics != nil {
		c.metrics.ConnectionsActive.Inc()
		defer c.metrics.ConnectionsActive.Dec()
	}

	// A blocked read does not observe ctx; closing the socket unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.netConn.Close()
		case <-stop:
		}
	}()

	reader := protocol.NewReader(c.netConn, c.cfg.MaxLineBytes)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.cfg.InactivityTimeout > 0 {
			_ = c.netConn.SetReadDeadline(time.Now().Add(c.cfg.InactivityTimeout))
		}

		env, err := reader.ReadEnvelope()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				c.logger.Debug("dropping malformed frame", "error", err)
				continue
			}
			c.handleReadError(err)
			return
		}

		now := time.Now()
		if c.violations.inCooldown(now) {
			// Single-violation cooldown: read and silently drop.
			if c.metrics != nil {
				c.metrics.RateLimitDrops.Inc()
			}
			continue
		}

		if !c.limiter.Allow() {
			if c.metrics != nil {
				c.metrics.RateLimitDrops.Inc()
			}
			if c.violations.record(now, singleViolationCooldown) {
				c.logger.Warn("closing connection for sustained rate-limit abuse", "remote", c.netConn.RemoteAddr())
				if c.metrics != nil {
					c.metrics.RateLimitCloses.Inc()
				}
				return
			}
			continue
		}

		resp := c.disp.Dispatch(ctx, env)
		if c.metrics != nil {
			c.metrics.FramesTotal.WithLabelValues(resp.Status).Inc()
		}

		if err := c.write(resp); err != nil {
			c.logger.Debug("write failed, tearing down connection", "error", err)
			return
		}
	}
}

func (c *conn) write(env protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteEnvelope(c.netConn, env)
}

func (c *conn) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		return
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.Debug("connection idle timeout", "remote", c.netConn.RemoteAddr())
			return
		}
		c.logger.Debug("connection read error", "error", err)
	}
}
