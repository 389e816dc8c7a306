package notifications

import (
	"errors"
	"fmt"

	"murmur/internal/models"
	"murmur/internal/validation"

	"github.com/fasthttp/websocket"
	jsoniter "github.com/json-iterator/go"
)

// Close codes outside the RFC 6455 registry.
const (
	CloseUnauthorized   = 3000
	CloseSchemaMismatch = 4001
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedFrame marks a frame that is not valid JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// DecodeFrame parses and validates one client frame.
func DecodeFrame(data []byte) (validation.ChatFrame, error) {
	var frame validation.ChatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := validation.Struct(frame); err != nil {
		return frame, err
	}
	return frame, nil
}

func isReadLimit(err error) bool {
	return errors.Is(err, websocket.ErrReadLimit)
}

// CloseCodeFor maps a frame failure to the code the socket is closed with.
func CloseCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return websocket.CloseInvalidFramePayloadData
	case isReadLimit(err):
		return websocket.CloseMessageTooBig
	}

	switch models.ErrorCode(err) {
	case models.CodeWebsocketProtocol:
		return websocket.CloseMessageTooBig
	case models.CodeValidation:
		return CloseSchemaMismatch
	case models.CodeUnauthorized:
		return CloseUnauthorized
	case models.CodeInvalidAction, models.CodeNotFound, models.CodeLimitReached, models.CodeCollision:
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseInternalServerErr
	}
}

// closeReason is the client-safe close text. Close frames carry at most
// 123 bytes of reason.
func closeReason(err error, code int) string {
	if code == websocket.CloseInternalServerErr {
		return "internal error"
	}
	var appErr *models.AppError
	reason := err.Error()
	if errors.As(err, &appErr) {
		reason = appErr.Message
	}
	if len(reason) > 123 {
		reason = reason[:123]
	}
	return reason
}
