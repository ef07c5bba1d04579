package browser

//go:generate $MOCKGEN -source=browser.go -destination=mocks/browser_mock.go

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"

	"github.com/sso-tools/sso-grabber/internal/config"
	"github.com/sso-tools/sso-grabber/internal/constants"
	"github.com/sso-tools/sso-grabber/internal/logger"
)

const (
	// slowMotionDelay is the delay between browser actions for visibility during debugging.
	slowMotionDelay = 200 * time.Millisecond

	// profileCleanupDelay is the delay to wait for Chrome to release file locks before cleanup.
	profileCleanupDelay = 500 * time.Millisecond

	// profileDirPrefix is the prefix of per-session browser profile directories.
	profileDirPrefix = "sso-grabber-"
)

// Session is the browser-automation boundary used by the SSO login flow.
type Session interface {
	// Navigate loads the given URL and waits for the page to load.
	Navigate(ctx context.Context, url string) error

	// Back navigates one step back in the session history.
	Back(ctx context.Context) error

	// Cookies returns the cookies visible to the given URLs.
	// A nil slice returns the cookies of the current page.
	Cookies(ctx context.Context, urls []string) ([]*proto.NetworkCookie, error)

	// SetCookies injects the given cookies into the session.
	SetCookies(ctx context.Context, cookies []*proto.NetworkCookieParam) error

	// Find waits up to timeout for an element matching the CSS selector.
	// Absence is a value, not an error: the second return is false when the
	// element did not appear in time, whatever the underlying cause.
	Find(ctx context.Context, selector string, timeout time.Duration) (Element, bool)

	// Close terminates the browser and cleans up session resources.
	Close(ctx context.Context) error
}

// Element is a live reference to a page element.
type Element interface {
	// Find waits up to timeout for a descendant matching the CSS selector.
	Find(selector string, timeout time.Duration) (Element, bool)

	// Text returns the element's visible text.
	Text() (string, error)

	// Clear empties an input field.
	Clear() error

	// Input types text into an input field.
	Input(text string) error

	// Click performs a left mouse click on the element.
	Click() error
}

// RodSession is the go-rod backed Session implementation.
type RodSession struct {
	browser *rod.Browser
	page    *rod.Page

	// profileDir is the throwaway user data directory for this session.
	profileDir string
}

// NewSession launches a browser and returns a live session.
// Each session gets a fresh profile directory: no state leaks between runs
// besides the cookies the caller explicitly injects.
func NewSession(ctx context.Context, cfg *config.Config) (*RodSession, error) {
	profileDir := filepath.Join(os.TempDir(), profileDirPrefix+uuid.NewString())
	if err := os.MkdirAll(profileDir, constants.CookieFolderPermissions); err != nil {
		return nil, fmt.Errorf("failed to create browser profile directory: %w", err)
	}

	logger.Debugf(ctx, "Using browser profile directory: %s", profileDir)

	launch := launcher.New().
		Headless(cfg.Headless).
		UserDataDir(profileDir)

	// Prefer a system Chrome; fall back to downloading Chromium.
	if chromePath, hasSystemChrome := launcher.LookPath(); hasSystemChrome {
		logger.Debugf(ctx, "Using system Chrome installation at: %s", chromePath)

		launch = launch.Bin(chromePath)
	} else {
		logger.Debug(ctx, "System Chrome not found, downloading Chromium")
	}

	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Debugf(ctx, "Browser launched at: %s", controlURL)

	browserInstance := rod.New().ControlURL(controlURL).Context(ctx)

	// Enable trace and slow motion only in debug mode.
	if logger.IsDebugLevel() {
		browserInstance = browserInstance.
			Trace(true).
			SlowMotion(slowMotionDelay)
	}

	if err = browserInstance.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	// A stealth page keeps the portal from flagging the session as automated.
	page, err := stealth.Page(browserInstance)
	if err != nil {
		_ = browserInstance.Close()

		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	logger.Debug(ctx, "Browser session initialized")

	return &RodSession{
		browser:    browserInstance,
		page:       page,
		profileDir: profileDir,
	}, nil
}

// Navigate loads the given URL and waits for the page to load.
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}

	return nil
}

// Back navigates one step back in the session history.
func (s *RodSession) Back(ctx context.Context) error {
	if err := s.page.Context(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}

	return nil
}

// Cookies returns the cookies visible to the given URLs.
func (s *RodSession) Cookies(ctx context.Context, urls []string) ([]*proto.NetworkCookie, error) {
	cookies, err := s.page.Context(ctx).Cookies(urls)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	return cookies, nil
}

// SetCookies injects the given cookies into the session.
func (s *RodSession) SetCookies(ctx context.Context, cookies []*proto.NetworkCookieParam) error {
	if err := s.page.Context(ctx).SetCookies(cookies); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	return nil
}

// Find waits up to timeout for an element matching the CSS selector.
func (s *RodSession) Find(ctx context.Context, selector string, timeout time.Duration) (Element, bool) {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		logger.Debugf(ctx, "Element %q did not appear within %v: %v", selector, timeout, err)

		return nil, false
	}

	return &rodElement{el: el}, true
}

// Close terminates the browser and removes the session profile directory.
func (s *RodSession) Close(ctx context.Context) error {
	if s.browser != nil {
		// Close errors are expected when the user already closed the window.
		if err := s.browser.Close(); err != nil {
			logger.Debugf(ctx, "Browser close error (expected): %v", err)
		}
	}

	if s.profileDir != "" {
		// Give Chrome a moment to release file locks.
		time.Sleep(profileCleanupDelay)

		if err := os.RemoveAll(s.profileDir); err != nil {
			logger.Debugf(ctx, "Could not clean up profile directory %s: %v", s.profileDir, err)
		}
	}

	return nil
}

// rodElement adapts *rod.Element to the Element interface.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Find(selector string, timeout time.Duration) (Element, bool) {
	el, err := e.el.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, false
	}

	return &rodElement{el: el}, true
}

func (e *rodElement) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", fmt.Errorf("failed to read element text: %w", err)
	}

	return text, nil
}

func (e *rodElement) Clear() error {
	if err := e.el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select field text: %w", err)
	}

	if err := e.el.Type(input.Backspace); err != nil {
		return fmt.Errorf("failed to clear field: %w", err)
	}

	return nil
}

func (e *rodElement) Input(text string) error {
	if err := e.el.Input(text); err != nil {
		return fmt.Errorf("failed to type into field: %w", err)
	}

	return nil
}

func (e *rodElement) Click() error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click element: %w", err)
	}

	return nil
}
