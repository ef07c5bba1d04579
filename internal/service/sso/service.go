package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sso-tools/sso-grabber/internal/browser"
	"github.com/sso-tools/sso-grabber/internal/config"
	"github.com/sso-tools/sso-grabber/internal/cookiecache"
)

const (
	// authCookieName is the name of the portal's authentication cookie.
	// Its value is the token this whole tool exists to extract, which is
	// also why it is the one cookie never written to the cookie cache.
	authCookieName = "x-amz-sso_authn"

	// dashboardSelector matches the element that only exists once login has completed.
	dashboardSelector = "portal-dashboard"

	// usernameFieldSelector is the wrapper around the username input.
	usernameFieldSelector = "#username-input"

	// usernameSubmitSelector is the wrapper around the username submit button.
	usernameSubmitSelector = "#username-submit-button"

	// passwordFieldSelector is the wrapper around the password input.
	passwordFieldSelector = "#password-input"

	// passwordSubmitSelector is the wrapper around the password submit button.
	passwordSubmitSelector = "#password-submit-button"

	// fieldInputSelector locates the actual input inside a field wrapper.
	fieldInputSelector = "div.awsui-input-container > input"

	// fieldButtonSelector locates the actual button inside a button wrapper.
	fieldButtonSelector = "button"

	// alertFrameSelector matches the error banner frame the portal renders on login failure.
	alertFrameSelector = "#alertFrame"

	// alertTitleSelector locates the error title inside the alert frame.
	alertTitleSelector = "div.a-alert-error > div.a-box-inner > h4"

	// alertMessageSelector locates the error message inside the alert frame.
	alertMessageSelector = "div.a-alert-error > div.a-box-inner > div.gwt-Label"

	// mfaFormSelector is the MFA prompt heuristic: the portal renders no
	// other <form> once credentials are submitted.
	mfaFormSelector = "form"

	// mfaCodeSelector locates the MFA code input inside the MFA form.
	mfaCodeSelector = "#awsui-input-0"

	// mfaSubmitSelector locates the MFA sign-in button inside the MFA form.
	mfaSubmitSelector = "button.awsui-button-variant-primary"

	// elementWaitTimeout bounds the optional element lookups of the login flow.
	elementWaitTimeout = 1 * time.Second

	// dashboardWaitTimeout bounds the wait for the dashboard marker in GetToken.
	dashboardWaitTimeout = 1 * time.Second

	// mfaElementWaitTimeout bounds the element lookups inside the MFA form.
	// The form is already on screen at that point, so these are generous.
	mfaElementWaitTimeout = 10 * time.Second
)

var (
	// ErrSessionNotOpen is returned when an operation runs before Open.
	ErrSessionNotOpen = errors.New("browser session is not open")

	// ErrDashboardNotFound is returned when the portal dashboard did not appear in time.
	ErrDashboardNotFound = errors.New("portal dashboard did not appear in time")

	// ErrAuthCookieNotFound is returned when the auth cookie cannot be found after login.
	ErrAuthCookieNotFound = errors.New("auth cookie not found - login may have failed")

	// ErrLoginIncomplete is returned when login stalled but neither an alert nor an MFA prompt was detected.
	ErrLoginIncomplete = errors.New("login did not complete and no alert or MFA prompt was detected")

	// ErrNoMFAPrompt is returned when SendMFA is called without a detected MFA prompt.
	ErrNoMFAPrompt = errors.New("no MFA prompt to answer")

	// ErrMFAElementNotFound is returned when the MFA form is missing an expected element.
	ErrMFAElementNotFound = errors.New("mfa form element not found")
)

// Service drives the portal login flow and extracts the authentication token.
type Service interface {
	// Open launches the browser session. No navigation happens yet.
	Open(ctx context.Context) error

	// Get navigates to the portal and injects any cached cookies for this identity.
	Get(ctx context.Context) error

	// Login best-effort fills the portal's login form. Each of the four
	// possible steps is independently optional: a cached session may skip
	// any of them, so absence is not a failure and nothing is reported back.
	Login(ctx context.Context, username, password string)

	// GetToken waits briefly for the dashboard marker and extracts the token
	// from the auth cookie. With restore set, the browser is navigated back
	// afterwards so the caller finds the page where it was.
	GetToken(ctx context.Context, restore bool) (Token, error)

	// RefreshToken runs the full Get, Login, GetToken sequence and
	// classifies a stalled login into an alert or an MFA prompt.
	RefreshToken(ctx context.Context, username, password string, restore bool) (LoginOutcome, error)

	// SendMFA answers a previously detected MFA prompt with the given code.
	// Wrong codes are not detected here; the caller re-runs the token flow.
	SendMFA(ctx context.Context, prompt *MFAPrompt, code string, trustedDevice bool) error

	// Close persists non-sensitive session cookies and quits the browser.
	Close(ctx context.Context) error
}

// ServiceImpl implements Service against the browser driver boundary.
type ServiceImpl struct {
	cfg      *config.Config
	session  browser.Session
	store    *cookiecache.Store
	cacheKey string

	// newSession is swapped in tests to avoid launching a real browser.
	newSession func(ctx context.Context, cfg *config.Config) (browser.Session, error)
}

// NewService creates a new portal login service.
// Cookie persistence is enabled only when the config carries a cookie directory.
func NewService(cfg *config.Config) (*ServiceImpl, error) {
	s := &ServiceImpl{
		cfg:      cfg,
		cacheKey: cookiecache.CacheKey(cfg.Username, cfg.PortalURL),
		newSession: func(ctx context.Context, cfg *config.Config) (browser.Session, error) {
			return browser.NewSession(ctx, cfg)
		},
	}

	if cfg.CookieDir != "" {
		store, err := cookiecache.NewStore(cfg.CookieDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cookie store: %w", err)
		}

		s.store = store
	}

	return s, nil
}
