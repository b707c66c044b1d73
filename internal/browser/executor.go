package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
	"github.com/droverhq/drover-cli/internal/dom"
)

// PagePrimitives is the narrow browser surface the executor drives.
// *Session implements it; tests substitute a mock.
type PagePrimitives interface {
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string, pressEnter bool) error
	SelectOption(ctx context.Context, selector, value string) error
	Scroll(ctx context.Context, direction string) error
	Screenshot(ctx context.Context) ([]byte, error)
	UploadFile(ctx context.Context, selector, path string) error
}

// Executor translates one validated decision into one classified
// outcome. It never returns a Go error for action failures; failure is
// data the decision model learns from.
type Executor struct {
	page         PagePrimitives
	artifactsDir string
	maxWaitSecs  int
	defaultWait  int
	queryLimit   int
	logger       *zap.Logger
}

// NewExecutor wires an executor over the given page primitives.
func NewExecutor(page PagePrimitives, browserCfg config.BrowserConfig, agentCfg config.AgentConfig, logger *zap.Logger) *Executor {
	return &Executor{
		page:         page,
		artifactsDir: browserCfg.ArtifactsDir,
		maxWaitSecs:  30,
		defaultWait:  agentCfg.DefaultWaitSecs,
		queryLimit:   agentCfg.QueryResultLimit,
		logger:       logger.Named("executor"),
	}
}

// Execute runs one decision against the current observation. The
// observation supplies element selectors and the text searched by
// query_dom; callers must have validated element IDs against it already.
func (e *Executor) Execute(ctx context.Context, decision schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	startTime := time.Now()
	outcome := e.dispatch(ctx, decision, obs)
	outcome.Kind = decision.Kind
	outcome.Duration = time.Since(startTime)

	if outcome.Success {
		e.logger.Debug("Action executed",
			zap.String("action", string(decision.Kind)),
			zap.Duration("duration", outcome.Duration))
	} else {
		e.logger.Warn("Action failed",
			zap.String("action", string(decision.Kind)),
			zap.String("code", string(outcome.Code)),
			zap.String("message", outcome.Message))
	}
	return outcome
}

func (e *Executor) dispatch(ctx context.Context, d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	switch d.Kind {
	case schemas.ActionNavigate:
		return e.navigate(ctx, d)
	case schemas.ActionGoBack:
		return e.goBack(ctx)
	case schemas.ActionClickElement:
		return e.click(ctx, d, obs)
	case schemas.ActionTypeText:
		return e.typeText(ctx, d, obs)
	case schemas.ActionSelectOption:
		return e.selectOption(ctx, d, obs)
	case schemas.ActionUploadFile:
		return e.uploadFile(ctx, d, obs)
	case schemas.ActionScrollPage:
		return e.scroll(ctx, d)
	case schemas.ActionTakeScreenshot:
		return e.screenshot(ctx)
	case schemas.ActionWait:
		return e.wait(ctx, d)
	case schemas.ActionQueryDOM:
		return e.queryDOM(d, obs)
	default:
		return schemas.ActionOutcome{
			Success: false,
			Code:    schemas.ErrCodeUnknownAction,
			Message: fmt.Sprintf("action %q cannot be executed against the browser", d.Kind),
		}
	}
}

// resolve maps a decision's element_id onto the observation's selector.
func (e *Executor) resolve(d schemas.ActionDecision, obs *schemas.ObservationState) (schemas.ElementDescriptor, *schemas.ActionOutcome) {
	id, ok := d.ElementID()
	if !ok {
		return schemas.ElementDescriptor{}, &schemas.ActionOutcome{
			Success: false,
			Code:    schemas.ErrCodeInvalidParameters,
			Message: "missing numeric element_id argument",
		}
	}
	if obs == nil || !obs.ValidID(id) {
		limit := 0
		if obs != nil {
			limit = len(obs.Elements)
		}
		return schemas.ElementDescriptor{}, &schemas.ActionOutcome{
			Success: false,
			Code:    schemas.ErrCodeInvalidElement,
			Message: fmt.Sprintf("invalid element ID %d; valid IDs are 0..%d from the latest observation", id, limit-1),
		}
	}
	return obs.Element(id), nil
}

func (e *Executor) failure(err error, kind schemas.ActionKind, what string) schemas.ActionOutcome {
	return schemas.ActionOutcome{
		Success: false,
		Code:    classifyError(err, kind),
		Message: fmt.Sprintf("%s: %v", what, err),
	}
}

func (e *Executor) navigate(ctx context.Context, d schemas.ActionDecision) schemas.ActionOutcome {
	url := d.StringArg("url")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "about:") {
		url = "https://" + url
	}
	if err := e.page.Navigate(ctx, url); err != nil {
		return e.failure(err, d.Kind, fmt.Sprintf("navigation to %s failed", url))
	}
	return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Navigated to %s", url)}
}

func (e *Executor) goBack(ctx context.Context) schemas.ActionOutcome {
	if err := e.page.GoBack(ctx); err != nil {
		return e.failure(err, schemas.ActionGoBack, "history back failed")
	}
	return schemas.ActionOutcome{Success: true, Message: "Went back one page"}
}

func (e *Executor) click(ctx context.Context, d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	el, bad := e.resolve(d, obs)
	if bad != nil {
		return *bad
	}
	if err := e.page.Click(ctx, el.Selector); err != nil {
		return e.failure(err, d.Kind, fmt.Sprintf("click on element %d (%s) failed", el.ID, el.Tag))
	}
	return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Clicked element %d (%s %q)", el.ID, el.Tag, el.Label)}
}

func (e *Executor) typeText(ctx context.Context, d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	el, bad := e.resolve(d, obs)
	if bad != nil {
		return *bad
	}
	text := d.StringArg("text")
	if err := e.page.Type(ctx, el.Selector, text, d.BoolArg("press_enter")); err != nil {
		return e.failure(err, d.Kind, fmt.Sprintf("typing into element %d failed", el.ID))
	}
	return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Typed %d characters into element %d", len(text), el.ID)}
}

func (e *Executor) selectOption(ctx context.Context, d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	el, bad := e.resolve(d, obs)
	if bad != nil {
		return *bad
	}
	value := d.StringArg("value")
	if err := e.page.SelectOption(ctx, el.Selector, value); err != nil {
		return e.failure(err, d.Kind, fmt.Sprintf("selecting %q in element %d failed", value, el.ID))
	}
	return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Selected %q in element %d", value, el.ID)}
}

func (e *Executor) uploadFile(ctx context.Context, d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	el, bad := e.resolve(d, obs)
	if bad != nil {
		return *bad
	}
	path := d.StringArg("file_path")
	if err := e.page.UploadFile(ctx, el.Selector, path); err != nil {
		return e.failure(err, d.Kind, fmt.Sprintf("uploading %s to element %d failed", path, el.ID))
	}
	return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Attached %s to element %d", filepath.Base(path), el.ID)}
}

func (e *Executor) scroll(ctx context.Context, d schemas.ActionDecision) schemas.ActionOutcome {
	direction := d.StringArg("direction")
	if direction == "" {
		direction = "down"
	}
	if err := e.page.Scroll(ctx, direction); err != nil {
		return e.failure(err, d.Kind, "scroll failed")
	}
	return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Scrolled %s", direction)}
}

func (e *Executor) screenshot(ctx context.Context) schemas.ActionOutcome {
	png, err := e.page.Screenshot(ctx)
	if err != nil {
		return e.failure(err, schemas.ActionTakeScreenshot, "screenshot failed")
	}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(e.artifactsDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return schemas.ActionOutcome{
			Success: false,
			Code:    schemas.ErrCodeInvalidParameters,
			Message: fmt.Sprintf("could not write screenshot: %v", err),
		}
	}
	return schemas.ActionOutcome{
		Success: true,
		Message: fmt.Sprintf("Saved screenshot to %s", path),
		Data:    map[string]interface{}{"path": path},
	}
}

func (e *Executor) wait(ctx context.Context, d schemas.ActionDecision) schemas.ActionOutcome {
	seconds := e.defaultWait
	if f, ok := d.FloatArg("seconds"); ok && f > 0 {
		seconds = int(f)
	}
	if seconds > e.maxWaitSecs {
		seconds = e.maxWaitSecs
	}
	select {
	case <-time.After(time.Duration(seconds) * time.Second):
		return schemas.ActionOutcome{Success: true, Message: fmt.Sprintf("Waited %d seconds", seconds)}
	case <-ctx.Done():
		return e.failure(ctx.Err(), d.Kind, "wait interrupted")
	}
}

func (e *Executor) queryDOM(d schemas.ActionDecision, obs *schemas.ObservationState) schemas.ActionOutcome {
	query := d.StringArg("query")
	var sample string
	if obs != nil {
		sample = obs.TextSample
	}
	matches := dom.SearchText(sample, query, e.queryLimit)
	if len(matches) == 0 {
		return schemas.ActionOutcome{
			Success: true,
			Message: fmt.Sprintf("No page text matched %q", query),
		}
	}
	return schemas.ActionOutcome{
		Success: true,
		Message: fmt.Sprintf("Found %d matching lines:\n%s", len(matches), strings.Join(matches, "\n")),
		Data:    map[string]interface{}{"matches": matches},
	}
}
