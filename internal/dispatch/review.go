package dispatch

import (
	"context"

	"github.com/forgegames/platform/internal/protocol"
	"github.com/forgegames/platform/internal/review"
)

type reviewResponse struct {
	Reviewer string `json:"reviewer"`
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
	Content  string `json:"content"`
	Score    int    `json:"score"`
}

func toReviewResponse(r review.Review) reviewResponse {
	return reviewResponse{
		Reviewer: r.Reviewer,
		GameName: r.GameName,
		Version:  r.Version,
		Content:  r.Content,
		Score:    r.Score,
	}
}

type reviewListResponse struct {
	Reviews []reviewResponse `json:"reviews"`
}

type searchAuthorRequest struct {
	Author string `json:"author"`
}

func handleReviewSearchAuthor(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req searchAuthorRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	reviews, err := d.Reviews.ListByAuthor(ctx, req.Author)
	if err != nil {
		return nil, err
	}
	return toReviewListResponse(reviews), nil
}

type searchGameRequest struct {
	GameName string `json:"game_name"`
}

func handleReviewSearchGame(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req searchGameRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	reviews, err := d.Reviews.ListByGame(ctx, req.GameName)
	if err != nil {
		return nil, err
	}
	return toReviewListResponse(reviews), nil
}

func toReviewListResponse(reviews []review.Review) reviewListResponse {
	out := make([]reviewResponse, len(reviews))
	for i, r := range reviews {
		out[i] = toReviewResponse(r)
	}
	return reviewListResponse{Reviews: out}
}

type reviewAddRequest struct {
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
	Content  string `json:"content"`
	Score    int    `json:"score"`
}

func handleReviewAdd(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req reviewAddRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	if err := d.Reviews.Add(ctx, c.username, req.GameName, req.Version, req.Content, req.Score); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

type reviewEditRequest struct {
	GameName   string `json:"game_name"`
	Version    int    `json:"version"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
	Score      int    `json:"score"`
}

type reviewEditResponse struct {
	OldScore int `json:"old_score"`
	NewScore int `json:"new_score"`
}

func handleReviewEdit(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req reviewEditRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	oldScore, newScore, err := d.Reviews.Edit(ctx, c.username, req.GameName, req.Version, req.OldContent, req.NewContent, req.Score)
	if err != nil {
		return nil, err
	}
	return reviewEditResponse{OldScore: oldScore, NewScore: newScore}, nil
}

type reviewDeleteRequest struct {
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
	Content  string `json:"content"`
}

type reviewDeleteResponse struct {
	DeletedScore int `json:"deleted_score"`
}

func handleReviewDelete(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req reviewDeleteRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	deleted, err := d.Reviews.Delete(ctx, c.username, req.GameName, req.Version, req.Content)
	if err != nil {
		return nil, err
	}
	return reviewDeleteResponse{DeletedScore: deleted}, nil
}

type reviewEligibilityRequest struct {
	GameName string `json:"game_name"`
	Version  int    `json:"version"`
}

type reviewEligibilityResponse struct {
	Eligible bool `json:"eligible"`
}

func handleReviewEligibility(ctx context.Context, d *Dispatcher, c call) (any, error) {
	var req reviewEligibilityRequest
	if err := c.env.DecodePayload(&req); err != nil {
		return nil, protocol.NewValidationf("invalid request payload", err)
	}
	ok, err := d.Reviews.Eligible(ctx, c.username, req.GameName, req.Version)
	if err != nil {
		return nil, err
	}
	return reviewEligibilityResponse{Eligible: ok}, nil
}
