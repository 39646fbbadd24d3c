package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/Tyrowin/challengehub/internal/protocol"
)

// Envelope type labels used when a frame never decodes to a request.
const (
	labelMalformed = "malformed"
	labelUnknown   = "unknown"
)

// HandleMessage decodes one inbound frame and dispatches it. Malformed frames
// and unknown types are dropped; every other failure is reported back to the
// sender and the connection stays open.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	req, err := protocol.Decode(raw)
	if err != nil {
		var payloadErr *protocol.PayloadError
		if errors.As(err, &payloadErr) {
			h.metrics.EnvelopeReceived(payloadErr.Type)
			h.replyError(c, payloadErr.Type, invalidPayload(payloadErr))
			return
		}
		h.metrics.EnvelopeReceived(labelMalformed)
		c.logger.Debug("dropping malformed envelope", "error", err)
		return
	}

	if unknown, ok := req.(protocol.Unknown); ok {
		h.metrics.EnvelopeReceived(labelUnknown)
		c.logger.Debug("dropping envelope of unknown type", "type", unknown.Type)
		return
	}

	h.metrics.EnvelopeReceived(req.RequestType())
	h.dispatch(c, req)
}

func invalidPayload(err *protocol.PayloadError) *HubError {
	if err.Type == protocol.TypeProgressUpdate {
		return ErrInvalidProgress.withMessage(err.Error())
	}
	return ErrInvalidPayload.withMessage(err.Error())
}

func (h *Hub) dispatch(c *Client, req protocol.Request) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic in handler",
				"type", req.RequestType(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			h.replyError(c, req.RequestType(), errInternal)
		}
	}()

	ctx := context.WithoutCancel(h.ctx)

	var err error
	switch r := req.(type) {
	case protocol.Authenticate:
		err = h.Authenticate(ctx, c, r.UserID, r.SessionToken)
	case protocol.JoinChallenge:
		_, err = h.Join(ctx, c, r.ChallengeID)
	case protocol.LeaveChallenge:
		h.LeaveChallenge(ctx, c)
	case protocol.ChatMessage:
		err = h.SendChatMessage(ctx, c, r.Content)
	case protocol.ProgressUpdate:
		if r.Progress == nil {
			err = ErrInvalidProgress.withMessage("progress is required")
			break
		}
		var percent int
		if percent, err = progressPercent(*r.Progress); err != nil {
			break
		}
		err = h.UpdateProgress(ctx, c, percent, r.Completed)
	}

	if err != nil {
		h.replyError(c, req.RequestType(), err)
	}
}

// replyError sends err to c using the error envelope that matches the
// request type. Errors that are not HubErrors are logged and reported as
// internal errors.
func (h *Hub) replyError(c *Client, requestType string, err error) {
	if errors.Is(err, errClientClosed) {
		return
	}

	var hubErr *HubError
	if !errors.As(err, &hubErr) {
		c.logger.Error("request failed", "type", requestType, "error", err)
		hubErr = errInternal
	}

	eventType := protocol.TypeError
	switch requestType {
	case protocol.TypeAuthenticate:
		eventType = protocol.TypeAuthError
	case protocol.TypeJoinChallenge:
		eventType = protocol.TypeJoinError
	}

	h.metrics.HandlerError(hubErr.Code)
	h.unicast(c, protocol.NewError(eventType, hubErr.Code, hubErr.Message))
}
