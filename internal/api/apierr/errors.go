package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/tictactoe-go/internal/model"
)

// Kind classifies an error independently of the transport
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthRequired
	KindCapacity
)

// HTTPStatus returns the status code used when the error is served over HTTP
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindCapacity:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthRequired:
		return "auth_required"
	case KindCapacity:
		return "capacity"
	default:
		return "internal"
	}
}

// Error codes sent to clients
const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeInvalidMessage       = "INVALID_MESSAGE"
	CodeUnknownMessageType   = "UNKNOWN_MESSAGE_TYPE"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInvalidPosition      = "INVALID_POSITION"
	CodeGameNotFound         = "GAME_NOT_FOUND"
	CodeGameFull             = "GAME_FULL"
	CodeSelfJoin             = "SELF_JOIN"
	CodeGameNotJoinable      = "GAME_NOT_JOINABLE"
	CodeGameNotActive        = "GAME_NOT_ACTIVE"
	CodeNotYourTurn          = "NOT_YOUR_TURN"
	CodeCellOccupied         = "CELL_OCCUPIED"
	CodeNotAPlayer           = "NOT_A_PLAYER"
	CodeSpectatorsNotAllowed = "SPECTATORS_NOT_ALLOWED"
	CodeAuthRequired         = "AUTHENTICATION_REQUIRED"
	CodeSpectatorLimit       = "SPECTATOR_LIMIT"
	CodeServerAtCapacity     = "SERVER_AT_CAPACITY"
	CodeMessageTooLarge      = "MESSAGE_TOO_LARGE"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// APIError is the client-facing shape of an error
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse wraps an APIError for HTTP responses
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Error is a classified error
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
}

// Error implements error interface
func (e *Error) Error() string {
	return e.Message
}

// API returns the client-facing representation
func (e *Error) API() APIError {
	return APIError{Code: e.Code, Message: e.Message, Field: e.Field}
}

// New creates a classified error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewValidationError creates a validation error naming the offending field
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Field: field}
}

// NewInternalError creates an internal server error
func NewInternalError() *Error {
	return New(KindInternal, CodeInternalError, "Internal server error")
}

// FromError classifies err. Unrecognized errors become internal errors
// whose message does not leak the cause.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return New(KindNotFound, CodeGameNotFound, "Game not found")
	case errors.Is(err, model.ErrSessionFull):
		return New(KindConflict, CodeGameFull, "Game is full")
	case errors.Is(err, model.ErrSelfJoin):
		return New(KindConflict, CodeSelfJoin, "Cannot join your own game")
	case errors.Is(err, model.ErrNotJoinable):
		return New(KindConflict, CodeGameNotJoinable, "Game is not available for joining")
	case errors.Is(err, model.ErrSessionNotActive):
		return New(KindConflict, CodeGameNotActive, "Game is not active")
	case errors.Is(err, model.ErrNotYourTurn):
		return New(KindConflict, CodeNotYourTurn, "Not your turn")
	case errors.Is(err, model.ErrCellOutOfRange):
		return New(KindValidation, CodeInvalidPosition, "Position must be between 0 and 8")
	case errors.Is(err, model.ErrCellOccupied):
		return New(KindConflict, CodeCellOccupied, "Position already occupied")
	case errors.Is(err, model.ErrNotParticipant):
		return New(KindConflict, CodeNotAPlayer, "Not a player in this game")
	case errors.Is(err, model.ErrSpectatorsDisabled):
		return New(KindConflict, CodeSpectatorsNotAllowed, "Spectators are not allowed in this game")
	case errors.Is(err, model.ErrSpectatorLimit):
		return New(KindCapacity, CodeSpectatorLimit, "Maximum spectators reached")
	case errors.Is(err, model.ErrInvalidPlayer):
		return NewValidationError("playerId", "Player id is required")
	case errors.Is(err, model.ErrAuthRequired):
		return New(KindAuthRequired, CodeAuthRequired, "Authentication required")
	case errors.Is(err, model.ErrServerAtCapacity):
		return New(KindCapacity, CodeServerAtCapacity, "Server at capacity")
	default:
		return NewInternalError()
	}
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	e := FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: e.API()})
}
