package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/droverhq/drover-cli/api/schemas"
)

// classifyError maps a chromedp/transport failure onto the outcome
// error-code taxonomy. Unknown failures default to the navigation class
// for navigation actions and NOT_INTERACTABLE otherwise; only hard
// session loss is critical.
func classifyError(err error, kind schemas.ActionKind) schemas.ErrorCode {
	if err == nil {
		return schemas.ErrCodeNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schemas.ErrCodeTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.Canceled) && strings.Contains(msg, "context canceled"):
		// The tab context dying mid-action means the session is gone.
		return schemas.ErrCodeCritical
	case strings.Contains(msg, "could not find node"),
		strings.Contains(msg, "no nodes found"),
		strings.Contains(msg, "waiting for selector"):
		return schemas.ErrCodeElementNotFound
	case strings.Contains(msg, "not visible"),
		strings.Contains(msg, "not clickable"),
		strings.Contains(msg, "node is detached"),
		strings.Contains(msg, "element is not enabled"):
		return schemas.ErrCodeNotInteractable
	case strings.Contains(msg, "net::"),
		strings.Contains(msg, "navigation failed"),
		strings.Contains(msg, "page load error"),
		strings.Contains(msg, "dns"):
		return schemas.ErrCodeNavigation
	case strings.Contains(msg, "websocket"),
		strings.Contains(msg, "browser process"),
		strings.Contains(msg, "target closed"),
		strings.Contains(msg, "session closed"):
		return schemas.ErrCodeCritical
	}

	switch kind {
	case schemas.ActionNavigate, schemas.ActionGoBack:
		return schemas.ErrCodeNavigation
	default:
		return schemas.ErrCodeNotInteractable
	}
}

// IsCritical reports whether an outcome means the browser session is
// unusable and the run must stop.
func IsCritical(o schemas.ActionOutcome) bool {
	return !o.Success && o.Code == schemas.ErrCodeCritical
}
