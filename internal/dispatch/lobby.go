package dispatch

import (
	"context"

	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/internal/room"
)

type roomResponse struct {
	RoomID     int      `json:"room_id"`
	Name       string   `json:"name"`
	Host       string   `json:"host"`
	Players    []string `json:"players"`
	Spectators []string `json:"spectators"`
	Ready      []string `json:"ready"`
	GameName   string   `json:"game_name"`
	Version    int      `json:"version"`
	MaxPlayers int      `json:"max_players"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	Port       int      `json:"port,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

func toRoomResponse(r *room.Room) roomResponse {
	ready := make([]string, 0, len(r.ReadySet))
	for u, ok := range r.ReadySet {
		if ok {
			ready = append(ready, u)
		}
	}
	return roomResponse{
		RoomID:     r.RoomID,
		Name:       r.Name,
		Host:       r.Host,
		Players:    r.Players,
		Spectators: r.Spectators,
		Ready:      ready,
		GameName:   r.Metadata.GameName,
		Version:    r.Metadata.Version,
		MaxPlayers: r.Metadata.MaxPlayers,
		Type:       string(r.Metadata.Type),
		Status:     string(r.Status),
		Port:       r.Port,
		Reason:     r.Reason,
	}
}

type listRoomsResponse struct {
	Rooms []roomResponse `json:"rooms"`
}

func handleListRooms(ctx context.Context, d *Dispatcher, c call) (any, error) {
	rooms := d.Rooms.ListRooms()
	out := make([]roomResponse, len(rooms))
	for i, r := range rooms {
		out[i] = toRoomResponse(r)
	}
	return listRoomsResponse{Rooms: out}, nil
}

type createRoomRequest struct {
	GameName string `json:"game_name"`
	RoomName string `json:"room_name,omitempty"`
}

func handleCreateRoom(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req createRoomRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	if req.GameName == "" {
		return nil, protocol.NewValidation("game_name is required")
	}
	r, err := d.Rooms.CreateRoom(ctx, c.username, req.GameName, req.RoomName)
	if err != nil {
		return nil, err
	}
	return toRoomResponse(r), nil
}

type roomIDRequest struct {
	RoomID int `json:"room_id"`
}

func handleJoinRoom(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req roomIDRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	r, err := d.Rooms.JoinRoom(c.username, req.RoomID)
	if err != nil {
		return nil, err
	}
	return toRoomResponse(r), nil
}

func handleLeaveRoom(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req roomIDRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	r, err := d.Rooms.LeaveRoom(c.username, req.RoomID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return struct{}{}, nil
	}
	return toRoomResponse(r), nil
}
