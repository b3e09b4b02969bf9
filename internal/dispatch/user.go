package dispatch

import (
	"context"

	"github.com/forgegames/platform/internal/identity"
	"github.com/forgegames/platform/internal/protocol"
)

type userListRequest struct {
	Role string `json:"role,omitempty"`
}

type userListResponse struct {
	Usernames []string `json:"usernames"`
}

func handleUserList(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req userListRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	return userListResponse{Usernames: d.Identity.ListOnline(identity.Role(req.Role))}, nil
}

type userStatsResponse struct {
	OnlinePlayers    int `json:"online_players"`
	OnlineDevelopers int `json:"online_developers"`
	TotalOnline      int `json:"total_online"`
}

func handleUserStats(ctx context.Context, d *Dispatcher, c call) (any, error) {
	return userStatsResponse{
		OnlinePlayers:    len(d.Identity.ListOnline(identity.RolePlayer)),
		OnlineDevelopers: len(d.Identity.ListOnline(identity.RoleDeveloper)),
		TotalOnline:      d.Identity.OnlineCount(),
	}, nil
}
