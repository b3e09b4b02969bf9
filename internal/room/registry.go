package room

import (
	"context"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/protocol"
)

// Registry is the single in-memory authority for live rooms. One mutex
// serializes every mutation; no per-room locks are introduced absent
// contention evidence.
type Registry struct {
	mu      sync.Mutex
	rooms   map[int]*Room
	nextID  int
	catalog *catalog.Catalog
}

// New constructs an empty Registry backed by cat for version resolution.
func New(cat *catalog.Catalog) *Registry {
	return &Registry{
		rooms:   make(map[int]*Room),
		nextID:  1,
		catalog: cat,
	}
}

// CreateRoom resolves game_name's latest published version and creates a
// new WAITING room with username as host and sole player.
func (reg *Registry) CreateRoom(ctx context.Context, username, gameName, roomName string) (*Room, error) {
	entry, err := reg.catalog.GetLatest(ctx, gameName)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := reg.nextID
	reg.nextID++

	r := &Room{
		RoomID:  id,
		Name:    roomName,
		Host:    username,
		Players: []string{username},
		ReadySet: map[string]bool{},
		Metadata: Metadata{
			GameName:   gameName,
			Version:    entry.Version,
			MaxPlayers: entry.MaxPlayers,
			Type:       entry.Type,
		},
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
	reg.rooms[id] = r
	return r.snapshot(), nil
}

func (reg *Registry) lookup(roomID int) (*Room, error) {
	r, ok := reg.rooms[roomID]
	if !ok {
		return nil, protocol.NewNotFound("unknown room_id")
	}
	return r, nil
}

// JoinRoom appends username as a player if capacity allows and the
// identity is not already present as a player or spectator.
func (reg *Registry) JoinRoom(username string, roomID int) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.lookup(roomID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusWaiting {
		return nil, protocol.NewConflict("room is not accepting players")
	}
	if containsString(r.Players, username) || containsString(r.Spectators, username) {
		return nil, protocol.NewConflict("already in room")
	}
	if len(r.Players) >= r.Metadata.MaxPlayers {
		r.Spectators = append(r.Spectators, username)
		return r.snapshot(), nil
	}
	r.Players = append(r.Players, username)
	return r.snapshot(), nil
}

// LeaveRoom removes username from the room, reassigning host and
// promoting a spectator as needed, and destroys the room if it becomes
// empty. Any running child is terminated as part of destruction.
func (reg *Registry) LeaveRoom(username string, roomID int) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.lookup(roomID)
	if err != nil {
		return nil, err
	}

	wasPlayer := containsString(r.Players, username)
	wasSpectator := containsString(r.Spectators, username)
	if !wasPlayer && !wasSpectator {
		return nil, protocol.NewValidation("not a member of this room")
	}

	if wasPlayer {
		r.Players = removeString(r.Players, username)
		delete(r.ReadySet, username)
	}
	if wasSpectator {
		r.Spectators = removeString(r.Spectators, username)
	}

	if r.Host == username {
		if len(r.Players) > 0 {
			r.Host = r.Players[0]
		} else if len(r.Spectators) > 0 {
			promoted := r.Spectators[0]
			r.Spectators = r.Spectators[1:]
			r.Players = append(r.Players, promoted)
			r.Host = promoted
		}
	}

	if len(r.Players) == 0 && len(r.Spectators) == 0 {
		reg.killLocked(r, "room_empty")
		delete(reg.rooms, roomID)
		return nil, nil
	}

	return r.snapshot(), nil
}

// SetReady toggles username's membership in the ready set.
func (reg *Registry) SetReady(username string, roomID int, ready bool) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.lookup(roomID)
	if err != nil {
		return nil, err
	}
	if !containsString(r.Players, username) {
		return nil, protocol.NewValidation("not a player in this room")
	}
	if ready {
		r.ReadySet[username] = true
	} else {
		delete(r.ReadySet, username)
	}
	return r.snapshot(), nil
}

// GetRoom returns a snapshot of roomID's current state, including
// terminated rooms (so ROOM.GET can observe the terminal state).
func (reg *Registry) GetRoom(roomID int) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, err := reg.lookup(roomID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// ListRooms returns a snapshot of every room, including terminated ones.
func (reg *Registry) ListRooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r.snapshot())
	}
	return out
}

// Count returns the number of rooms currently tracked (any status), used
// by the admin stats surface.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// PrepareLaunch verifies username is host and every other player is ready,
// returning a snapshot of the WAITING room. It does not mutate state; the
// caller (the launcher) does the actual work before calling CompleteLaunch.
func (reg *Registry) PrepareLaunch(username string, roomID int) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.lookup(roomID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusWaiting {
		return nil, protocol.NewConflict("room is not in a launchable state")
	}
	if r.Host != username {
		return nil, protocol.NewAuth("only the host may start the game")
	}
	if !r.allReady() {
		return nil, protocol.NewValidation("not all players are ready")
	}
	return r.snapshot(), nil
}

// CompleteLaunch atomically transitions roomID to IN_GAME with the
// launcher-provisioned port, tokens, match id, and process handle.
func (reg *Registry) CompleteLaunch(roomID, port int, clientToken, reportToken, matchID string, proc *os.Process) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, err := reg.lookup(roomID)
	if err != nil {
		return nil, err
	}
	r.Status = StatusInGame
	r.Port = port
	r.ClientToken = clientToken
	r.ReportToken = reportToken
	r.MatchID = matchID
	r.Process = proc
	r.LastBeat = time.Now()
	return r.snapshot(), nil
}

// AbandonLaunch reverts roomID to WAITING after a failed launch attempt
// (e.g. the child never reached STARTED within the health timeout).
func (reg *Registry) AbandonLaunch(roomID int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	if !ok {
		return
	}
	reg.killLocked(r, "")
	r.Status = StatusWaiting
	r.Port = 0
	r.ClientToken = ""
	r.ReportToken = ""
	r.MatchID = ""
	r.Process = nil
}

// RecordHeartbeat validates (matchID, reportToken) and refreshes the
// room's liveness timestamp.
func (reg *Registry) RecordHeartbeat(roomID int, matchID, reportToken string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, err := reg.lookup(roomID)
	if err != nil {
		return err
	}
	if r.Status != StatusInGame || r.MatchID != matchID || r.ReportToken != reportToken {
		return protocol.NewAuth("report token does not match this match")
	}
	r.LastBeat = time.Now()
	return nil
}

// Terminate validates (matchID, reportToken), kills the child if still
// running, releases the port, and transitions the room to TERMINATED.
func (reg *Registry) Terminate(roomID int, matchID, reportToken, reason string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, err := reg.lookup(roomID)
	if err != nil {
		return err
	}
	if r.Status != StatusInGame {
		return nil
	}
	if matchID != "" && (r.MatchID != matchID || r.ReportToken != reportToken) {
		return protocol.NewAuth("report token does not match this match")
	}
	reg.killLocked(r, reason)
	return nil
}

// StaleInGame returns rooms that are IN_GAME and whose last heartbeat is
// older than threshold, for the heartbeat-loss watchdog.
func (reg *Registry) StaleInGame(threshold time.Duration) []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cutoff := time.Now().Add(-threshold)
	var out []*Room
	for _, r := range reg.rooms {
		if r.Status == StatusInGame && r.LastBeat.Before(cutoff) {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// LiveChildren returns every room currently IN_GAME with a live process
// handle, for the orphan reaper and for shutdown-time termination.
func (reg *Registry) LiveChildren() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var out []*Room
	for _, r := range reg.rooms {
		if r.Status == StatusInGame && r.Process != nil {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// ForceTerminate transitions roomID to TERMINATED unconditionally, used by
// the orphan reaper once it has confirmed the child process has exited.
func (reg *Registry) ForceTerminate(roomID int, reason string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[roomID]
	if !ok || r.Status != StatusInGame {
		return
	}
	reg.killLocked(r, reason)
}

// killLocked kills r's child process if present, clears the port
// reservation, and marks the room TERMINATED. Caller must hold reg.mu.
func (reg *Registry) killLocked(r *Room, reason string) {
	if r.Process != nil {
		_ = r.Process.Signal(syscall.SIGTERM)
	}
	r.Status = StatusTerminated
	r.Reason = reason
	r.Process = nil
	r.Port = 0
}

// ShutdownAll kills every live child, used when the platform process is
// shutting down so no orphaned game server outlives it.
func (reg *Registry) ShutdownAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.rooms {
		if r.Status == StatusInGame {
			reg.killLocked(r, "platform_shutdown")
		}
	}
}

// ProcessAlive reports whether proc's process is still running, used by
// the orphan reaper to distinguish a live child from one that exited
// without ever reporting END/ERROR.
func ProcessAlive(proc *os.Process) bool {
	if proc == nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
