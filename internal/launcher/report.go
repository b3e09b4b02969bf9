package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/forgegames/platform/internal/protocol"
)

// Result is one player's outcome from a completed match, carried on an END
// report.
type Result struct {
	Player  string `json:"player"`
	Outcome string `json:"outcome"`
	Rank    *int   `json:"rank,omitempty"`
	Score   *int   `json:"score,omitempty"`
}

// reportPayload is the shape of a GAME.REPORT envelope's payload, sent by
// a spawned child on the fixed report port.
type reportPayload struct {
	Status      string   `json:"status"`
	RoomID      int      `json:"room_id"`
	MatchID     string   `json:"match_id"`
	ReportToken string   `json:"report_token"`
	Port        int      `json:"port,omitempty"`
	Results     []Result `json:"results,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	ErrMsg      string   `json:"err_msg,omitempty"`
}

const (
	reportStarted   = "STARTED"
	reportHeartbeat = "HEARTBEAT"
	reportEnd       = "END"
	reportError     = "ERROR"
)

// serveReports runs the fixed-port listener that every spawned child
// phones home to. It uses the same framed-JSON codec as the control-plane
// socket.
func (l *Launcher) serveReports(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", l.cfg.ReportHost, l.cfg.ReportPort)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on report port: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.logger.Info("report listener started", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				l.logger.Warn("report listener accept error", "error", err)
				continue
			}
		}
		go l.handleReportConn(conn)
	}
}

func (l *Launcher) handleReportConn(conn net.Conn) {
	defer conn.Close()

	reader := protocol.NewReader(conn, protocol.MaxLineBytes)
	for {
		env, err := reader.ReadEnvelope()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.logger.Debug("report connection read error", "error", err)
			}
			return
		}
		if env.Type != protocol.TypeReport {
			continue
		}

		var p reportPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			l.logger.Warn("malformed report payload, dropping", "error", err)
			continue
		}

		l.handleReport(p)
	}
}

// handleReport reconciles one report against the Room Registry. A failed
// report is logged and dropped; it never fails the control plane.
func (l *Launcher) handleReport(p reportPayload) {
	switch p.Status {
	case reportStarted:
		if err := l.registry.RecordHeartbeat(p.RoomID, p.MatchID, p.ReportToken); err != nil {
			l.logger.Warn("STARTED report rejected", "room_id", p.RoomID, "error", err)
			return
		}
		l.signalStarted(p.RoomID)
		if l.metrics != nil {
			l.metrics.MatchesTotal.WithLabelValues("started").Inc()
		}

	case reportHeartbeat:
		if err := l.registry.RecordHeartbeat(p.RoomID, p.MatchID, p.ReportToken); err != nil {
			l.logger.Debug("heartbeat rejected", "room_id", p.RoomID, "error", err)
		}

	case reportEnd:
		l.finishMatch(p.RoomID, p.MatchID, p.ReportToken, "match_end")
		if l.metrics != nil {
			l.metrics.MatchesTotal.WithLabelValues("end").Inc()
		}

	case reportError:
		l.logger.Warn("match reported error", "room_id", p.RoomID, "err_msg", p.ErrMsg)
		l.finishMatch(p.RoomID, p.MatchID, p.ReportToken, "match_error")
		if l.metrics != nil {
			l.metrics.MatchesTotal.WithLabelValues("error").Inc()
		}

	default:
		l.logger.Debug("unknown report status, dropping", "status", p.Status)
	}
}

func (l *Launcher) finishMatch(roomID int, matchID, reportToken, reason string) {
	snap, err := l.registry.GetRoom(roomID)
	if err != nil {
		return
	}
	port := snap.Port
	if err := l.registry.Terminate(roomID, matchID, reportToken, reason); err != nil {
		l.logger.Warn("terminate rejected", "room_id", roomID, "error", err)
		return
	}
	l.releasePort(port)
	os.RemoveAll(l.secretDirFor(roomID))
}

func (l *Launcher) secretDirFor(roomID int) string {
	return filepath.Join(l.cfg.SecretDir, strconv.Itoa(roomID))
}
