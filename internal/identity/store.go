// Package identity implements the control plane's user registry and
// in-memory session table: register/login/logout/validate/list_online.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/pkg/database"
)

// Role is one of the two identities a (username, role) pair can hold.
type Role string

const (
	RolePlayer    Role = "player"
	RoleDeveloper Role = "developer"
)

func (r Role) valid() bool { return r == RolePlayer || r == RoleDeveloper }

type identityKey struct {
	username string
	role     Role
}

type session struct {
	username  string
	role      Role
	createdAt time.Time
}

// Store is the persistent users table plus the in-memory session table and
// its reverse token index. The session table is never persisted: a control
// plane restart logs every connected client out, which is consistent with
// the single-active-session invariant.
type Store struct {
	conn   *database.Conn
	logger *slog.Logger
	params ArgonParams

	mu         sync.RWMutex
	sessions   map[string]session       // token -> session
	byIdentity map[identityKey]string   // (username, role) -> token
}

// New constructs a Store and ensures its schema exists.
func New(conn *database.Conn, logger *slog.Logger, params ArgonParams) (*Store, error) {
	s := &Store{
		conn:       conn,
		logger:     logger,
		params:     params,
		sessions:   make(map[string]session),
		byIdentity: make(map[identityKey]string),
	}
	if params == (ArgonParams{}) {
		s.params = defaultArgonParams()
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(64) NOT NULL,
			role VARCHAR(16) NOT NULL,
			salt VARCHAR(64) NOT NULL,
			password_hash VARCHAR(128) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (username, role)
		)
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

// Register creates a new (username, role) identity and returns a fresh
// session token. Fails with a Conflict error if the identity already exists.
func (s *Store) Register(ctx context.Context, username, password string, role Role) (string, error) {
	if username == "" || password == "" || !role.valid() {
		return "", protocol.NewValidation("username, password, and a valid role are required")
	}

	var exists int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? AND role = ?`, username, string(role),
	).Scan(&exists)
	if err != nil {
		return "", protocol.NewInternal("check existing user", err)
	}
	if exists > 0 {
		return "", protocol.NewConflict("username exists")
	}

	salt, hash, err := hashPassword(password, s.params)
	if err != nil {
		return "", protocol.NewInternal("hash password", err)
	}

	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, role, salt, password_hash) VALUES (?, ?, ?, ?)`,
		username, string(role), salt, hash,
	); err != nil {
		return "", protocol.NewInternal("insert user", err)
	}

	return s.createSession(username, role)
}

// Login verifies credentials and opens a new session. Fails with an Auth
// error on bad credentials or if a session is already active for the
// identity ("duplicate login" — resolved only by an explicit logout).
func (s *Store) Login(ctx context.Context, username, password string, role Role) (string, error) {
	if !role.valid() {
		return "", protocol.NewValidation("invalid role")
	}

	var salt, hash string
	err := s.conn.QueryRowContext(ctx,
		`SELECT salt, password_hash FROM users WHERE username = ? AND role = ?`, username, string(role),
	).Scan(&salt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", protocol.NewAuth("bad credentials")
	}
	if err != nil {
		return "", protocol.NewInternal("load user", err)
	}

	ok, err := verifyPassword(password, salt, hash, s.params)
	if err != nil {
		return "", protocol.NewInternal("verify password", err)
	}
	if !ok {
		return "", protocol.NewAuth("bad credentials")
	}

	s.mu.RLock()
	_, active := s.byIdentity[identityKey{username, role}]
	s.mu.RUnlock()
	if active {
		return "", protocol.NewAuth("duplicate login")
	}

	return s.createSession(username, role)
}

func (s *Store) createSession(username string, role Role) (string, error) {
	token, err := newOpaqueToken(32)
	if err != nil {
		return "", protocol.NewInternal("generate session token", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey{username, role}
	if _, active := s.byIdentity[key]; active {
		return "", protocol.NewAuth("duplicate login")
	}

	s.sessions[token] = session{username: username, role: role, createdAt: time.Now()}
	s.byIdentity[key] = token
	return token, nil
}

// Logout destroys the session for the given token. Returns false if the
// token was not active (already logged out or never valid).
func (s *Store) Logout(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	delete(s.sessions, token)
	delete(s.byIdentity, identityKey{sess.username, sess.role})
	return true
}

// Validate resolves a token to its (username, role). If role is non-empty
// the session's role must match. Returns an Auth error on any mismatch.
func (s *Store) Validate(token string, role Role) (username string, resolvedRole Role, err error) {
	if token == "" {
		return "", "", protocol.NewAuth("missing token")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", "", protocol.NewAuth("invalid token")
	}
	if role != "" && sess.role != role {
		return "", "", protocol.NewAuth("role mismatch")
	}
	return sess.username, sess.role, nil
}

// ListOnline returns the usernames with an active session, optionally
// filtered by role.
func (s *Store) ListOnline(role Role) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if role != "" && sess.role != role {
			continue
		}
		out = append(out, sess.username)
	}
	return out
}

// OnlineCount returns the number of active sessions, used by the admin
// stats surface.
func (s *Store) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RevokeIdentity force-logs-out a (username, role) pair, e.g. for
// operator-initiated session revocation. Not exposed as a dispatch handler
// in this core; available to future admin tooling.
func (s *Store) RevokeIdentity(username string, role Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey{username, role}
	token, ok := s.byIdentity[key]
	if !ok {
		return false
	}
	delete(s.byIdentity, key)
	delete(s.sessions, token)
	return true
}
