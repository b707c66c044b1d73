// Package browser executes agent decisions against a real Chrome
// instance via chromedp and reports classified outcomes.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
	"github.com/droverhq/drover-cli/internal/config"
)

// Session is one live browser tab owned by a single run.
type Session struct {
	id          string
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	cfg         config.BrowserConfig
	logger      *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

var _ PagePrimitives = (*Session)(nil)

// NewSession launches a browser and opens one tab. The returned session
// must be closed by the caller; ctx bounds the browser's lifetime.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	sessionID := uuid.New().String()
	sessionLogger := logger.Named("browser").With(zap.String("session_id", sessionID))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		cfg:         cfg,
		logger:      sessionLogger,
	}

	initCtx, cancel := context.WithTimeout(tabCtx, cfg.NavigationTimeout)
	defer cancel()
	tasks := chromedp.Tasks{network.Enable()}
	if cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(cfg.UserAgent))
	}
	if err := chromedp.Run(initCtx, tasks); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize browser session: %w", err)
	}

	if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create artifacts dir: %w", err)
	}

	sessionLogger.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// ID returns the session identifier used in log lines and artifacts.
func (s *Session) ID() string { return s.id }

// Close tears the tab and browser process down. Safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil
	}
	s.isClosed = true
	s.tabCancel()
	s.allocCancel()
	s.logger.Info("Browser session closed")
	return nil
}

// run executes chromedp actions on the session tab under the given
// deadline.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url))
}

// GoBack steps one entry back in tab history.
func (s *Session) GoBack(ctx context.Context) error {
	return s.run(ctx, s.cfg.NavigationTimeout, chromedp.NavigateBack())
}

// Click clicks the first node matching the XPath selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.Click(selector, chromedp.BySearch),
	)
}

// Type clears the matched field and types text into it, optionally
// submitting with Enter.
func (s *Session) Type(ctx context.Context, selector, text string, pressEnter bool) error {
	keys := text
	if pressEnter {
		keys += "\n"
	}
	return s.run(ctx, s.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.Clear(selector, chromedp.BySearch),
		chromedp.SendKeys(selector, keys, chromedp.BySearch),
	)
}

// SelectOption sets a select element's value and fires its change event.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	return s.run(ctx, s.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.SetValue(selector, value, chromedp.BySearch),
	)
}

// Scroll moves the viewport by roughly one page in the given direction.
func (s *Session) Scroll(ctx context.Context, direction string) error {
	delta := "window.innerHeight * 0.8"
	if direction == "up" {
		delta = "-" + delta
	}
	var res interface{}
	return s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %s); true;", delta), &res),
	)
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// UploadFile attaches a local file to a file input.
func (s *Session) UploadFile(ctx context.Context, selector, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("upload source not readable: %w", err)
	}
	return s.run(ctx, s.cfg.ActionTimeout,
		chromedp.SetUploadFiles(selector, []string{path}, chromedp.BySearch),
	)
}

// Snapshot captures the tab's location, title and serialized DOM.
func (s *Session) Snapshot(ctx context.Context) (schemas.RawSnapshot, error) {
	var snap schemas.RawSnapshot
	err := s.run(ctx, s.cfg.ActionTimeout,
		chromedp.Location(&snap.URL),
		chromedp.Title(&snap.Title),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return schemas.RawSnapshot{}, fmt.Errorf("failed to capture page snapshot: %w", err)
	}
	return snap, nil
}

// CurrentURL returns the tab's location, or "" when unavailable.
func (s *Session) CurrentURL(ctx context.Context) string {
	var url string
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return ""
	}
	return url
}

// challengeProbe looks for the common captcha/anti-bot containers.
const challengeProbe = `(function() {
	if (document.querySelector("iframe[src*='recaptcha'], iframe[src*='hcaptcha']")) return true;
	if (document.querySelector(".g-recaptcha, .h-captcha, #challenge-form, #cf-challenge-running")) return true;
	var t = (document.title || "").toLowerCase();
	return t.indexOf("just a moment") !== -1 || t.indexOf("attention required") !== -1;
})()`

// DetectChallenge reports whether the page is gated by a captcha or
// similar anti-automation wall. Errors count as "no challenge"; the
// orchestrator will fail on the blocked interaction instead.
func (s *Session) DetectChallenge(ctx context.Context) bool {
	var blocked bool
	if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Evaluate(challengeProbe, &blocked)); err != nil {
		s.logger.Debug("Challenge probe failed", zap.Error(err))
		return false
	}
	return blocked
}

// CaptureDiagnostics writes a timestamped screenshot and HTML dump into
// the artifacts directory. Best effort: partial captures still return
// whatever paths were written.
func (s *Session) CaptureDiagnostics(ctx context.Context, kind string) []string {
	stamp := time.Now().UTC().Format("20060102T150405")
	base := fmt.Sprintf("error_%s_%s", sanitizeKind(kind), stamp)
	var written []string

	if png, err := s.Screenshot(ctx); err == nil {
		path := filepath.Join(s.cfg.ArtifactsDir, base+".png")
		if err := os.WriteFile(path, png, 0o644); err == nil {
			written = append(written, path)
		}
	} else {
		s.logger.Warn("Diagnostic screenshot failed", zap.Error(err))
	}

	if snap, err := s.Snapshot(ctx); err == nil {
		path := filepath.Join(s.cfg.ArtifactsDir, base+".html")
		if err := os.WriteFile(path, []byte(snap.HTML), 0o644); err == nil {
			written = append(written, path)
		}
	} else {
		s.logger.Warn("Diagnostic DOM dump failed", zap.Error(err))
	}

	if len(written) > 0 {
		s.logger.Info("Captured diagnostic artifacts", zap.Strings("paths", written))
	}
	return written
}

func sanitizeKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, kind)
}
