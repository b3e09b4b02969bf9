// Package dispatch maps wire envelope types to authorized handlers and
// adapts handler errors into response envelopes. It is the single
// dispatch-boundary adapter: handlers return (payload, error); only this
// package knows about envelope codes.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/identity"
	"github.com/forgegames/platform/internal/launcher"
	"github.com/forgegames/platform/internal/packagestore"
	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/internal/review"
	"github.com/forgegames/platform/internal/room"
	"github.com/forgegames/platform/pkg/metrics"
)

// handlerFunc is the uniform shape every route implements. The call carries
// the authenticated caller's identity when the route's auth flag is set.
type handlerFunc func(ctx context.Context, d *Dispatcher, call call) (any, error)

// call bundles the decoded request the handler needs: its own payload plus
// the caller identity resolved (if any) by the auth wrapper.
type call struct {
	env      protocol.Envelope
	username string
	role     identity.Role
}

type route struct {
	handler  handlerFunc
	auth     bool
	role     identity.Role // "" = any authenticated role
}

// Dispatcher wires every subsystem constructed once in main and routes
// incoming envelopes to the handler table below.
type Dispatcher struct {
	Identity *identity.Store
	Catalog  *catalog.Catalog
	Reviews  *review.Store
	Packages *packagestore.Store
	Rooms    *room.Registry
	Launcher *launcher.Launcher
	Metrics  *metrics.Registry
	Logger   *slog.Logger

	routes map[string]route
}

// New builds a Dispatcher with every route wired and ready.
func New(identityStore *identity.Store, cat *catalog.Catalog, reviews *review.Store, packages *packagestore.Store, rooms *room.Registry, l *launcher.Launcher, m *metrics.Registry, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		Identity: identityStore,
		Catalog:  cat,
		Reviews:  reviews,
		Packages: packages,
		Rooms:    rooms,
		Launcher: l,
		Metrics:  m,
		Logger:   logger.With("component", "dispatch"),
	}
	d.routes = d.buildRoutes()
	return d
}

func (d *Dispatcher) buildRoutes() map[string]route {
	return map[string]route{
		protocol.TypeRegisterPlayer:    {handler: handleRegisterPlayer},
		protocol.TypeLoginPlayer:       {handler: handleLoginPlayer},
		protocol.TypeLogoutPlayer:      {handler: handleLogout, auth: true},
		protocol.TypeRegisterDeveloper: {handler: handleRegisterDeveloper},
		protocol.TypeLoginDeveloper:    {handler: handleLoginDeveloper},
		protocol.TypeLogoutDeveloper:   {handler: handleLogout, auth: true},

		protocol.TypeListGame:      {handler: handleListGame},
		protocol.TypeGetDetails:    {handler: handleGetDetails},
		protocol.TypeUploadBegin:   {handler: handleUploadBegin, auth: true, role: identity.RoleDeveloper},
		protocol.TypeUploadChunk:   {handler: handleUploadChunk, auth: true, role: identity.RoleDeveloper},
		protocol.TypeUploadEnd:     {handler: handleUploadEnd, auth: true, role: identity.RoleDeveloper},
		protocol.TypeDownloadBegin: {handler: handleDownloadBegin, auth: true},
		protocol.TypeDownloadChunk: {handler: handleDownloadChunk, auth: true},
		protocol.TypeDownloadEnd:   {handler: handleDownloadEnd, auth: true},
		protocol.TypeStart:        {handler: handleStart, auth: true},
		protocol.TypeAdminStats:   {handler: handleAdminStats, auth: true, role: identity.RoleDeveloper},

		protocol.TypeListRooms:  {handler: handleListRooms, auth: true},
		protocol.TypeCreateRoom: {handler: handleCreateRoom, auth: true},
		protocol.TypeJoinRoom:   {handler: handleJoinRoom, auth: true},
		protocol.TypeLeaveRoom:  {handler: handleLeaveRoom, auth: true},

		protocol.TypeRoomGet:   {handler: handleRoomGet, auth: true},
		protocol.TypeRoomReady: {handler: handleRoomReady, auth: true},

		protocol.TypeReviewSearchAuthor: {handler: handleReviewSearchAuthor},
		protocol.TypeReviewSearchGame:   {handler: handleReviewSearchGame},
		protocol.TypeReviewAdd:          {handler: handleReviewAdd, auth: true},
		protocol.TypeReviewEdit:         {handler: handleReviewEdit, auth: true},
		protocol.TypeReviewDelete:       {handler: handleReviewDelete, auth: true},
		protocol.TypeReviewEligibility:  {handler: handleReviewEligibility, auth: true},

		protocol.TypeUserList:  {handler: handleUserList},
		protocol.TypeUserStats: {handler: handleUserStats, auth: true, role: identity.RoleDeveloper},
	}
}

// Dispatch implements transport.Dispatcher: it is the single boundary
// where typed errors become envelope codes.
func (d *Dispatcher) Dispatch(ctx context.Context, env protocol.Envelope) protocol.Envelope {
	r, ok := d.routes[env.Type]
	if !ok {
		return protocol.Err(env.Type, env.RequestID, protocol.CodeUnknownType, "unknown type")
	}

	c := call{env: env}

	if r.auth {
		username, role, err := d.Identity.Validate(env.Token, r.role)
		if err != nil {
			code, msg := protocol.CodeFor(err)
			return protocol.Err(env.Type, env.RequestID, code, msg)
		}
		c.username = username
		c.role = role
	}

	payload, err := r.handler(ctx, d, c)
	if err != nil {
		code, msg := protocol.CodeFor(err)
		d.Logger.Debug("handler returned error", "type", env.Type, "code", code, "message", msg)
		return protocol.Err(env.Type, env.RequestID, code, msg)
	}

	return protocol.OK(env.Type, env.RequestID, payload)
}
