package dispatch

import (
	"context"
	"encoding/base64"

	"github.com/forgegames/platform/internal/catalog"
	"github.com/forgegames/platform/internal/identity"
	"github.com/forgegames/platform/internal/packagestore"
	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/internal/room"
)

type gameEntryResponse struct {
	Author      string `json:"author"`
	GameName    string `json:"game_name"`
	Version     int    `json:"version"`
	Type        string `json:"type"`
	MaxPlayers  int    `json:"max_players"`
	Description string `json:"description"`
	ScoreSum    int    `json:"score_sum"`
	ReviewCount int    `json:"review_count"`
}

func toGameEntryResponse(e catalog.Entry) gameEntryResponse {
	return gameEntryResponse{
		Author:      e.Author,
		GameName:    e.GameName,
		Version:     e.Version,
		Type:        string(e.Type),
		MaxPlayers:  e.MaxPlayers,
		Description: e.Description,
		ScoreSum:    e.ScoreSum,
		ReviewCount: e.ReviewCount,
	}
}

type listGameResponse struct {
	Games []gameEntryResponse `json:"games"`
}

func handleListGame(ctx context.Context, d *Dispatcher, c call) (any, error) {
	entries, err := d.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]gameEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toGameEntryResponse(e)
	}
	return listGameResponse{Games: out}, nil
}

type getDetailsRequest struct {
	Author   string `json:"author"`
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
}

func handleGetDetails(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req getDetailsRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	var (
		entry catalog.Entry
		err   error
	)
	if req.Author != "" {
		entry, err = d.Catalog.GetDetails(ctx, req.Author, req.GameName, req.Version)
	} else {
		entry, err = d.Catalog.GetLatest(ctx, req.GameName)
	}
	if err != nil {
		return nil, err
	}
	return toGameEntryResponse(entry), nil
}

type uploadBeginRequest struct {
	GameName    string `json:"game_name"`
	Type        string `json:"type"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description"`
	MaxPlayers  int    `json:"max_players"`
}

type uploadBeginResponse struct {
	UploadID string `json:"upload_id"`
}

func handleUploadBegin(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req uploadBeginRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	expected := packagestore.ExpectedMetadata{
		GameName:    req.GameName,
		Type:        req.Type,
		Version:     req.Version,
		Description: req.Description,
		MaxPlayers:  req.MaxPlayers,
	}
	id, err := d.Packages.BeginUpload(ctx, c.username, expected)
	if err != nil {
		return nil, err
	}
	return uploadBeginResponse{UploadID: id}, nil
}

type uploadChunkRequest struct {
	UploadID string `json:"upload_id"`
	Seq      int    `json:"seq"`
	Data     string `json:"data"`
}

func handleUploadChunk(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req uploadChunkRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	raw, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, protocol.NewValidationf("chunk data is not valid base64", err)
	}
	if err := d.Packages.UploadChunk(ctx, req.UploadID, req.Seq, raw); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type uploadEndRequest struct {
	UploadID string `json:"upload_id"`
}

func handleUploadEnd(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req uploadEndRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	entry, err := d.Packages.EndUpload(ctx, req.UploadID)
	if err != nil {
		return nil, err
	}
	return toGameEntryResponse(entry), nil
}

type downloadBeginRequest struct {
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
}

type downloadBeginResponse struct {
	DownloadID string `json:"download_id"`
	TotalSize  int64  `json:"total_size"`
}

func handleDownloadBegin(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req downloadBeginRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	id, size, err := d.Packages.BeginDownload(ctx, c.username, req.GameName, req.Version)
	if err != nil {
		return nil, err
	}
	return downloadBeginResponse{DownloadID: id, TotalSize: size}, nil
}

type downloadChunkRequest struct {
	DownloadID string `json:"download_id"`
}

type downloadChunkResponse struct {
	Data string `json:"data"`
	Done bool   `json:"done"`
}

func handleDownloadChunk(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req downloadChunkRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	data, done, err := d.Packages.DownloadChunk(ctx, req.DownloadID)
	if err != nil {
		return nil, err
	}
	return downloadChunkResponse{Data: base64.StdEncoding.EncodeToString(data), Done: done}, nil
}

type downloadEndRequest struct {
	DownloadID string `json:"download_id"`
}

func handleDownloadEnd(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req downloadEndRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	if err := d.Packages.EndDownload(ctx, req.DownloadID); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type startRequest struct {
	RoomID int `json:"room_id"`
}

type startResponse struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	ClientToken string `json:"client_token"`
	GameName    string `json:"game_name"`
	Version     int    `json:"version"`
}

func handleStart(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req startRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	desc, err := d.Launcher.Start(ctx, c.username, req.RoomID)
	if err != nil {
		return nil, err
	}
	return startResponse{
		Host:        desc.Host,
		Port:        desc.Port,
		ClientToken: desc.ClientToken,
		GameName:    desc.GameName,
		Version:     desc.Version,
	}, nil
}

type adminStatsResponse struct {
	OnlinePlayers    int `json:"online_players"`
	OnlineDevelopers int `json:"online_developers"`
	PublishedGames   int `json:"published_games"`
	LiveRooms        int `json:"live_rooms"`
}

func handleAdminStats(ctx context.Context, d *Dispatcher, c call) (any, error) {
	gameCount, err := d.Catalog.Count(ctx)
	if err != nil {
		return nil, err
	}
	liveRooms := 0
	for _, r := range d.Rooms.ListRooms() {
		if r.Status != room.StatusTerminated {
			liveRooms++
		}
	}
	return adminStatsResponse{
		OnlinePlayers:    len(d.Identity.ListOnline(identity.RolePlayer)),
		OnlineDevelopers: len(d.Identity.ListOnline(identity.RoleDeveloper)),
		PublishedGames:   gameCount,
		LiveRooms:        liveRooms,
	}, nil
}
