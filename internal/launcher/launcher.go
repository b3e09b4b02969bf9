// Package launcher implements the Match Launcher: port allocation, secret
// provisioning, manifest-driven subprocess spawning, and reconciliation of
// room state from the child-report channel.
package launcher

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forgegames/platform/internal/packagestore"
	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/internal/room"
	"github.com/forgegames/platform/pkg/config"
	"github.com/forgegames/platform/pkg/metrics"
)

// Descriptor is returned by Start to the room host after a successful
// launch; no other call hands it to players who join later.
type Descriptor struct {
	Host        string
	Port        int
	ClientToken string
	GameName    string
	Version     int
	MaxPlayers  int
	Type        string
}

// Launcher owns port reservations and in-flight launches. The Room
// Registry remains the source of truth for room state; the Launcher acts
// under its direction.
type Launcher struct {
	cfg       config.LauncherConfig
	registry  *room.Registry
	packages  *packagestore.Store
	logger    *slog.Logger
	metrics   *metrics.Registry
	ctx       context.Context
	cancel    context.CancelFunc

	mu            sync.Mutex
	reservedPorts map[int]bool
	pendingStart  map[int]chan struct{}

	heartbeatTimeout   time.Duration
	startHealthTimeout time.Duration
}

// New constructs a Launcher. Call Run to start its background goroutines
// (report listener, heartbeat watchdog, orphan reaper).
func New(cfg config.LauncherConfig, reg *room.Registry, pkgs *packagestore.Store, logger *slog.Logger, m *metrics.Registry) *Launcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Launcher{
		cfg:                cfg,
		registry:           reg,
		packages:           pkgs,
		logger:             logger.With("component", "launcher"),
		metrics:            m,
		ctx:                ctx,
		cancel:             cancel,
		reservedPorts:      make(map[int]bool),
		pendingStart:       make(map[int]chan struct{}),
		heartbeatTimeout:   config.ParseDuration(cfg.HeartbeatTimeout, 60*time.Second),
		startHealthTimeout: config.ParseDuration(cfg.StartHealthTimeout, 5*time.Second),
	}
}

// Run starts the launcher's background goroutines. It blocks until ctx is
// cancelled or the report listener fails to bind.
func (l *Launcher) Run(ctx context.Context) error {
	go l.watchdogLoop(ctx)
	go l.reaperLoop(ctx)
	return l.serveReports(ctx)
}

// Shutdown cancels every in-flight launch bookkeeping goroutine and kills
// every live child, so no orphaned game server outlives the platform.
func (l *Launcher) Shutdown() {
	l.cancel()
	l.registry.ShutdownAll()
}

func newSecret(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Start runs the full launch sequence for roomID on username's behalf:
// prepares the room, loads its manifest, allocates a port, provisions
// secrets, spawns the server process, and arms the start-health timer.
func (l *Launcher) Start(ctx context.Context, username string, roomID int) (Descriptor, error) {
	snap, err := l.registry.PrepareLaunch(username, roomID)
	if err != nil {
		return Descriptor{}, err
	}

	manifest, err := l.packages.LoadManifest(snap.Metadata.GameName, snap.Metadata.Version)
	if err != nil {
		return Descriptor{}, err
	}

	port, err := l.allocatePort()
	if err != nil {
		return Descriptor{}, err
	}

	clientToken, err := newSecret(32)
	if err != nil {
		l.releasePort(port)
		return Descriptor{}, protocol.NewInternal("generate client token", err)
	}
	reportToken, err := newSecret(32)
	if err != nil {
		l.releasePort(port)
		return Descriptor{}, protocol.NewInternal("generate report token", err)
	}
	matchID, err := newSecret(8)
	if err != nil {
		l.releasePort(port)
		return Descriptor{}, protocol.NewInternal("generate match id", err)
	}

	secretDir := l.secretDirFor(roomID)
	clientTokenPath, reportTokenPath, err := writeSecretFiles(secretDir, clientToken, reportToken)
	if err != nil {
		l.releasePort(port)
		return Descriptor{}, protocol.NewInternal("provision secrets", err)
	}

	launchCtx := buildContext(snap, port, matchID, clientToken, reportToken, clientTokenPath, reportTokenPath, l.cfg)

	packageDir := l.packages.PackageDir(snap.Metadata.GameName, snap.Metadata.Version)
	proc, err := l.spawn(packageDir, manifest.Server, launchCtx)
	if err != nil {
		l.releasePort(port)
		os.RemoveAll(secretDir)
		return Descriptor{}, err
	}

	if _, err := l.registry.CompleteLaunch(roomID, port, clientToken, reportToken, matchID, proc); err != nil {
		_ = proc.Kill()
		l.releasePort(port)
		os.RemoveAll(secretDir)
		return Descriptor{}, err
	}

	l.awaitStart(roomID, matchID, port, secretDir)

	return Descriptor{
		Host:        l.cfg.ReportHost,
		Port:        port,
		ClientToken: clientToken,
		GameName:    snap.Metadata.GameName,
		Version:     snap.Metadata.Version,
		MaxPlayers:  snap.Metadata.MaxPlayers,
		Type:        string(snap.Metadata.Type),
	}, nil
}

func writeSecretFiles(dir, clientToken, reportToken string) (clientPath, reportPath string, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}
	clientPath = filepath.Join(dir, "client_token")
	reportPath = filepath.Join(dir, "report_token")
	if err := os.WriteFile(clientPath, []byte(clientToken), 0o600); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(reportPath, []byte(reportToken), 0o600); err != nil {
		return "", "", err
	}
	return clientPath, reportPath, nil
}

func buildContext(snap *room.Room, port int, matchID, clientToken, reportToken, clientTokenPath, reportTokenPath string, cfg config.LauncherConfig) map[string]string {
	ctx := map[string]string{
		"host":                      cfg.ReportHost,
		"port":                      strconv.Itoa(port),
		"room_id":                   strconv.Itoa(snap.RoomID),
		"match_id":                  matchID,
		"client_token":              clientToken,
		"report_token":              reportToken,
		"client_token_path":         clientTokenPath,
		"report_token_path":         reportTokenPath,
		"player_count":              strconv.Itoa(len(snap.Players)),
		"players_json":              playersJSON(snap.Players),
		"players_csv":               strings.Join(snap.Players, ","),
		"bind_host":                 "0.0.0.0",
		"report_host":               cfg.ReportHost,
		"report_port":               strconv.Itoa(cfg.ReportPort),
		"platform_protocol_version": cfg.ProtocolVersion,
	}
	for i, p := range snap.Players {
		ctx[fmt.Sprintf("p%d", i+1)] = p
	}
	return ctx
}

func playersJSON(players []string) string {
	data, err := json.Marshal(players)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (l *Launcher) spawn(packageDir string, pd packagestore.ProcessDef, launchCtx map[string]string) (*os.Process, error) {
	command, err := renderTemplate(pd.Command, launchCtx)
	if err != nil {
		return nil, err
	}
	argv := splitCommand(command)
	if len(argv) == 0 {
		return nil, protocol.NewValidation("server command is empty")
	}

	workDir := packageDir
	if pd.WorkingDir != "" {
		workDir = filepath.Join(packageDir, pd.WorkingDir)
	}

	env := os.Environ()
	for k, v := range pd.Env {
		rendered, err := renderTemplate(v, launchCtx)
		if err != nil {
			return nil, err
		}
		env = append(env, k+"="+rendered)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return nil, protocol.NewInternal("spawn game server", err)
	}
	return cmd.Process, nil
}

// awaitStart starts a goroutine that waits up to the health timeout for a
// STARTED report on roomID/matchID and returns at once; if none arrives the
// goroutine reverts the room to WAITING.
func (l *Launcher) awaitStart(roomID int, matchID string, port int, secretDir string) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.pendingStart[roomID] = ch
	l.mu.Unlock()

	go func() {
		timer := time.NewTimer(l.startHealthTimeout)
		defer timer.Stop()
		select {
		case <-ch:
		case <-timer.C:
			l.registry.AbandonLaunch(roomID)
			l.releasePort(port)
			os.RemoveAll(secretDir)
			l.logger.Warn("match failed to report STARTED within health timeout", "room_id", roomID, "match_id", matchID)
		case <-l.ctx.Done():
		}
		l.mu.Lock()
		delete(l.pendingStart, roomID)
		l.mu.Unlock()
	}()
}

func (l *Launcher) signalStarted(roomID int) {
	l.mu.Lock()
	ch, ok := l.pendingStart[roomID]
	l.mu.Unlock()
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
