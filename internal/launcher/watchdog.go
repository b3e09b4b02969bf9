package launcher

import (
	"context"
	"os"
	"time"

	"github.com/forgegames/platform/internal/room"
)

const (
	watchdogTick = 5 * time.Second
	reaperTick   = 5 * time.Second
)

// watchdogLoop force-terminates any IN_GAME room whose last heartbeat is
// older than the configured threshold.
func (l *Launcher) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(watchdogTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, r := range l.registry.StaleInGame(l.heartbeatTimeout) {
				l.logger.Warn("heartbeat lost, terminating room", "room_id", r.RoomID, "match_id", r.MatchID)
				l.registry.ForceTerminate(r.RoomID, "heartbeat_lost")
				l.releasePort(r.Port)
				os.RemoveAll(l.secretDirFor(r.RoomID))
				if l.metrics != nil {
					l.metrics.HeartbeatLost.Inc()
					l.metrics.MatchesTotal.WithLabelValues("heartbeat_lost").Inc()
				}
			}
		}
	}
}

// reaperLoop sweeps IN_GAME rooms whose child process has exited without
// ever sending an END/ERROR report (crashed, or was killed out of band)
// and force-transitions them to TERMINATED, freeing the port. Grounded in
// the launcher owning subprocess handles directly and sweeping them
// centrally rather than relying solely on the report channel.
func (l *Launcher) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(reaperTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, r := range l.registry.LiveChildren() {
				if room.ProcessAlive(r.Process) {
					continue
				}
				l.logger.Warn("child exited without reporting, reaping room", "room_id", r.RoomID)
				l.registry.ForceTerminate(r.RoomID, "child_exited")
				l.releasePort(r.Port)
				os.RemoveAll(l.secretDirFor(r.RoomID))
				if l.metrics != nil {
					l.metrics.MatchesTotal.WithLabelValues("child_exited").Inc()
				}
			}
		}
	}
}
