package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/api/googleapi"
)

// wrapAPI annotates an API error with the operation it came from.
func wrapAPI(op string, err error) error {
	return fmt.Errorf("youtube: %s: %w", op, err)
}

// NotFoundError reports a lookup that yielded nothing: an unknown handle,
// channel, or playlist. It is fatal for the channel concerned but must not
// abort processing of other configured channels.
type NotFoundError struct {
	Kind string // "channel", "handle", "playlist", "video"
	Ref  string // the reference as the user supplied it
	Hint string // optional guidance, e.g. literal-ID fallback
}

func (e *NotFoundError) Error() string {
	msg := e.Kind + " not found: " + e.Ref
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// IsNotFound reports whether err is a NotFoundError or an API-level 404.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 404
}

// IsTransient reports whether err looks retryable: server-side failures,
// rate limiting, timeouts. Used only at the call sites designed for retry
// (the playlist propagation probe); everywhere else errors surface as-is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	return false
}
