package dispatch

import (
	"context"

	"github.com/forgegames/platform/internal/protocol"
)

func handleRoomGet(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req roomIDRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	r, err := d.Rooms.GetRoom(req.RoomID)
	if err != nil {
		return nil, err
	}
	return toRoomResponse(r), nil
}

type roomReadyRequest struct {
	RoomID int  `json:"room_id"`
	Ready  bool `json:"ready"`
}

func handleRoomReady(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req roomReadyRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	r, err := d.Rooms.SetReady(c.username, req.RoomID, req.Ready)
	if err != nil {
		return nil, err
	}
	return toRoomResponse(r), nil
}
