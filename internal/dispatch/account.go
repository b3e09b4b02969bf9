package dispatch

import (
	"context"

	"github.com/forgegames/platform/internal/identity"
	"github.com/forgegames/platform/internal/protocol"
)

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

func decodeCredentials(env protocol.Envelope) (credentialsPayload, error) {
	var p credentialsPayload
	if err := env.DecodePayload(&p); err != nil {
		return p, protocol.NewValidationf("invalid request payload", err)
	}
	if p.Username == "" || p.Password == "" {
		return p, protocol.NewValidation("username and password are required")
	}
	return p, nil
}

func registerWithRole(ctx context.Context, d *Dispatcher, c call, role identity.Role) (any, error) {
	p, err := decodeCredentials(c.env)
	if err != nil {
		return nil, err
	}
	token, err := d.Identity.Register(ctx, p.Username, p.Password, role)
	if err != nil {
		return nil, err
	}
	return sessionResponse{SessionToken: token}, nil
}

func loginWithRole(ctx context.Context, d *Dispatcher, c call, role identity.Role) (any, error) {
	p, err := decodeCredentials(c.env)
	if err != nil {
		return nil, err
	}
	token, err := d.Identity.Login(ctx, p.Username, p.Password, role)
	if err != nil {
		return nil, err
	}
	return sessionResponse{SessionToken: token}, nil
}

func handleRegisterPlayer(ctx context.Context, d *Dispatcher, c call) (any, error) {
	return registerWithRole(ctx, d, c, identity.RolePlayer)
}

func handleLoginPlayer(ctx context.Context, d *Dispatcher, c call) (any, error) {
	return loginWithRole(ctx, d, c, identity.RolePlayer)
}

func handleRegisterDeveloper(ctx context.Context, d *Dispatcher, c call) (any, error) {
	return registerWithRole(ctx, d, c, identity.RoleDeveloper)
}

func handleLoginDeveloper(ctx context.Context, d *Dispatcher, c call) (any, error) {
	return loginWithRole(ctx, d, c, identity.RoleDeveloper)
}

func handleLogout(ctx context.Context, d *Dispatcher, c call) (any, error) {
	d.Identity.Logout(c.env.Token)
	return struct{}{}, nil
}
