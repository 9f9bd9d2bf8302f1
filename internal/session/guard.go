package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/threadline-ai/threadline/internal/logging"
)

// Guard runs an externally supplied callable on behalf of a session.
// A panic or error is logged with full detail server-side and surfaced
// to the end user only as a generic support message, never an internal
// trace. Cooperative cancellation is a clean stop: it is not logged
// and produces no user-visible message.
//
// The returned string is the user-facing message, empty when the
// callable succeeded or was cancelled.
func Guard(ctx context.Context, sessionID, name string, fn func(ctx context.Context) error) (userMessage string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("session_id", sessionID).
				Str("callable", name).
				Str("stack", string(debug.Stack())).
				Msgf("panic in user callable: %v", r)
			userMessage = SupportMessage()
		}
	}()

	err := fn(ctx)
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return ""
	}

	logging.Error().
		Err(err).
		Str("session_id", sessionID).
		Str("callable", name).
		Msg("user callable failed")
	return SupportMessage()
}

// SupportMessage returns the generic, deliberately non-technical text
// shown to the end user when a callable fails. The timestamp lets
// support correlate a report with server-side logs without exposing
// any internal detail.
func SupportMessage() string {
	timestamp := time.Now().Format("January 2, 2006 at 3:04:05 PM")
	return fmt.Sprintf(
		"Something went wrong. Please try again later or contact support, mentioning the time of the issue: %s.",
		timestamp,
	)
}
