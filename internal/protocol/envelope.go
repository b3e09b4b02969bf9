// Package protocol defines the wire envelope and namespaced message types
// shared by the control-plane socket and the child-report channel.
package protocol

import "encoding/json"

// Status values carried on response envelopes.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Envelope codes, per the wire protocol's error taxonomy.
const (
	CodeOK          = 0
	CodeUnknownType = 100
	CodeAuth        = 101
	CodeNotFound    = 103
	CodeConflict    = 104
	CodeInternal    = 199
	CodeTimeout     = 408
)

// Envelope is the single struct shape used for both requests and responses;
// unused fields are omitted on the wire. This replaces the duck-typed message
// dict the reference design describes with a tagged, strongly typed value.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Token     string          `json:"token,omitempty"`
	RequestID string          `json:"request_id,omitempty"`

	Status  string `json:"status,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK builds a success response envelope, echoing the request's type and id.
func OK(reqType, requestID string, payload any) Envelope {
	raw, _ := json.Marshal(payload)
	return Envelope{
		Type:      reqType,
		Status:    StatusOK,
		Code:      CodeOK,
		Payload:   raw,
		RequestID: requestID,
	}
}

// Err builds an error response envelope.
func Err(reqType, requestID string, code int, message string) Envelope {
	return Envelope{
		Type:      reqType,
		Status:    StatusError,
		Code:      code,
		Message:   message,
		Payload:   json.RawMessage("{}"),
		RequestID: requestID,
	}
}

// DecodePayload unmarshals the envelope's payload into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Namespaced type constants. Non-exhaustive extension is expected; unknown
// types are rejected by the dispatcher with CodeUnknownType.
const (
	TypeRegisterPlayer    = "ACCOUNT.REGISTER_PLAYER"
	TypeLoginPlayer       = "ACCOUNT.LOGIN_PLAYER"
	TypeLogoutPlayer      = "ACCOUNT.LOGOUT_PLAYER"
	TypeRegisterDeveloper = "ACCOUNT.REGISTER_DEVELOPER"
	TypeLoginDeveloper    = "ACCOUNT.LOGIN_DEVELOPER"
	TypeLogoutDeveloper   = "ACCOUNT.LOGOUT_DEVELOPER"

	TypeListGame      = "GAME.LIST_GAME"
	TypeGetDetails    = "GAME.GET_DETAILS"
	TypeUploadBegin   = "GAME.UPLOAD_BEGIN"
	TypeUploadChunk   = "GAME.UPLOAD_CHUNK"
	TypeUploadEnd     = "GAME.UPLOAD_END"
	TypeDownloadBegin = "GAME.DOWNLOAD_BEGIN"
	TypeDownloadChunk = "GAME.DOWNLOAD_CHUNK"
	TypeDownloadEnd   = "GAME.DOWNLOAD_END"
	TypeStart         = "GAME.START"
	TypeReport        = "GAME.REPORT"
	TypeAdminStats    = "GAME.ADMIN_STATS"

	TypeListRooms = "LOBBY.LIST_ROOMS"
	TypeCreateRoom = "LOBBY.CREATE_ROOM"
	TypeJoinRoom  = "LOBBY.JOIN_ROOM"
	TypeLeaveRoom = "LOBBY.LEAVE_ROOM"

	TypeRoomGet   = "ROOM.GET"
	TypeRoomReady = "ROOM.READY"

	TypeReviewSearchAuthor = "REVIEW.SEARCH_AUTHOR"
	TypeReviewSearchGame   = "REVIEW.SEARCH_GAME"
	TypeReviewAdd          = "REVIEW.ADD"
	TypeReviewEdit         = "REVIEW.EDIT"
	TypeReviewDelete       = "REVIEW.DELETE"
	TypeReviewEligibility  = "REVIEW.ELIGIBILITY_CHECK"

	TypeUserList  = "USER.LIST"
	TypeUserStats = "USER.STATS"
)
