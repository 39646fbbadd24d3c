package server

import (
	"errors"

	"github.com/Tyrowin/challengehub/internal/protocol"
)

// HubError is a business error reported to the client as an error envelope.
// Two HubErrors match under errors.Is when their codes are equal, so a
// sentinel with a more specific message still compares equal to the sentinel.
type HubError struct {
	Code    string
	Message string
}

func (e *HubError) Error() string {
	return e.Message
}

// Is reports whether target is a HubError with the same code.
func (e *HubError) Is(target error) bool {
	t, ok := target.(*HubError)
	return ok && t.Code == e.Code
}

func (e *HubError) withMessage(msg string) *HubError {
	return &HubError{Code: e.Code, Message: msg}
}

var (
	ErrNotAuthenticated  = &HubError{Code: protocol.CodeNotAuthenticated, Message: "authenticate before joining a challenge"}
	ErrAuthFailed        = &HubError{Code: protocol.CodeAuthFailed, Message: "authentication failed"}
	ErrChallengeNotFound = &HubError{Code: protocol.CodeChallengeNotFound, Message: "challenge not found"}
	ErrNotCollaborative  = &HubError{Code: protocol.CodeNotCollaborative, Message: "challenge is not collaborative"}
	ErrNotInChallenge    = &HubError{Code: protocol.CodeNotInChallenge, Message: "join a challenge first"}
	ErrEmptyMessage      = &HubError{Code: protocol.CodeEmptyMessage, Message: "message content is empty"}
	ErrInvalidProgress   = &HubError{Code: protocol.CodeInvalidProgress, Message: "progress must be between 0 and 100"}
	ErrInvalidPayload    = &HubError{Code: protocol.CodeInvalidPayload, Message: "invalid payload"}
	ErrRateLimited       = &HubError{Code: protocol.CodeRateLimited, Message: "too many messages; request discarded"}

	errInternal = &HubError{Code: protocol.CodeInternal, Message: "internal server error"}
)

// ErrHubClosed is returned by Register once the hub has stopped.
var ErrHubClosed = errors.New("hub closed")

// errClientClosed aborts a join for a client that disconnected mid-request.
var errClientClosed = errors.New("client closed")
