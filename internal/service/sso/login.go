package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/sso-tools/sso-grabber/internal/logger"
)

// Open launches the browser session.
func (s *ServiceImpl) Open(ctx context.Context) error {
	logger.Debug(ctx, "Opening browser session")

	session, err := s.newSession(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}

	s.session = session

	return nil
}

// Get navigates to the portal and injects any cached cookies for this identity.
func (s *ServiceImpl) Get(ctx context.Context) error {
	if s.session == nil {
		return ErrSessionNotOpen
	}

	logger.Debugf(ctx, "Navigating to portal: %s", s.cfg.PortalURL)

	if err := s.session.Navigate(ctx, s.cfg.PortalURL); err != nil {
		return err
	}

	return s.restoreCookies(ctx)
}

// Login best-effort fills the portal's login form.
// The portal presents between zero and four of these steps depending on what
// it already knows about the session, so every miss is tolerated silently.
func (s *ServiceImpl) Login(ctx context.Context, username, password string) {
	if s.session == nil {
		return
	}

	s.fillField(ctx, usernameFieldSelector, username)
	s.clickButton(ctx, usernameSubmitSelector)
	s.fillField(ctx, passwordFieldSelector, password)
	s.clickButton(ctx, passwordSubmitSelector)
}

// fillField locates an optional field wrapper and types the value into its inner input.
func (s *ServiceImpl) fillField(ctx context.Context, selector, value string) {
	wrapper, ok := s.session.Find(ctx, selector, elementWaitTimeout)
	if !ok {
		logger.Debugf(ctx, "Login step skipped: %s not present", selector)

		return
	}

	field, ok := wrapper.Find(fieldInputSelector, elementWaitTimeout)
	if !ok {
		logger.Debugf(ctx, "Login step skipped: no input inside %s", selector)

		return
	}

	if err := field.Clear(); err != nil {
		logger.Debugf(ctx, "Could not clear %s: %v", selector, err)

		return
	}

	if err := field.Input(value); err != nil {
		logger.Debugf(ctx, "Could not fill %s: %v", selector, err)
	}
}

// clickButton locates an optional button wrapper and clicks its inner button.
func (s *ServiceImpl) clickButton(ctx context.Context, selector string) {
	wrapper, ok := s.session.Find(ctx, selector, elementWaitTimeout)
	if !ok {
		logger.Debugf(ctx, "Login step skipped: %s not present", selector)

		return
	}

	button, ok := wrapper.Find(fieldButtonSelector, elementWaitTimeout)
	if !ok {
		logger.Debugf(ctx, "Login step skipped: no button inside %s", selector)

		return
	}

	if err := button.Click(); err != nil {
		logger.Debugf(ctx, "Could not click %s: %v", selector, err)
	}
}

// GetToken waits briefly for the dashboard marker and extracts the token from the auth cookie.
func (s *ServiceImpl) GetToken(ctx context.Context, restore bool) (Token, error) {
	if s.session == nil {
		return Token{}, ErrSessionNotOpen
	}

	if _, ok := s.session.Find(ctx, dashboardSelector, dashboardWaitTimeout); !ok {
		return Token{}, ErrDashboardNotFound
	}

	// Re-navigate so the auth cookie is readable under the portal origin.
	if err := s.session.Navigate(ctx, s.cfg.PortalURL); err != nil {
		return Token{}, err
	}

	cookies, err := s.session.Cookies(ctx, []string{s.cfg.PortalURL})
	if err != nil {
		return Token{}, err
	}

	token, found := findAuthCookie(cookies)
	if !found {
		return Token{}, ErrAuthCookieNotFound
	}

	if restore {
		// Put the browser back on the page the caller was driving.
		if err = s.session.Back(ctx); err != nil {
			logger.Debugf(ctx, "Could not navigate back: %v", err)
		}
	}

	logger.Debugf(ctx, "Token extracted, expires at %s", token.ExpiresAt)

	return token, nil
}

// RefreshToken runs the full login sequence and classifies a stalled login.
func (s *ServiceImpl) RefreshToken(ctx context.Context, username, password string, restore bool) (LoginOutcome, error) {
	if err := s.Get(ctx); err != nil {
		return LoginOutcome{}, err
	}

	s.Login(ctx, username, password)

	token, err := s.GetToken(ctx, restore)
	if err == nil {
		return LoginOutcome{Kind: OutcomeToken, Token: token}, nil
	}

	if !errors.Is(err, ErrDashboardNotFound) {
		return LoginOutcome{}, err
	}

	// The dashboard never appeared: the portal is either showing an error
	// banner or asking for a second factor.
	if alert, ok := s.checkAlert(ctx); ok {
		return LoginOutcome{Kind: OutcomeAlert, Alert: alert}, nil
	}

	if prompt, ok := s.checkMFA(ctx); ok {
		return LoginOutcome{Kind: OutcomeMFARequired, MFA: prompt}, nil
	}

	return LoginOutcome{}, ErrLoginIncomplete
}

// checkAlert looks for the portal's error banner and scrapes its text.
// A banner missing its inner elements is treated as no alert.
func (s *ServiceImpl) checkAlert(ctx context.Context) (Alert, bool) {
	frame, ok := s.session.Find(ctx, alertFrameSelector, elementWaitTimeout)
	if !ok {
		return Alert{}, false
	}

	titleEl, ok := frame.Find(alertTitleSelector, elementWaitTimeout)
	if !ok {
		return Alert{}, false
	}

	messageEl, ok := frame.Find(alertMessageSelector, elementWaitTimeout)
	if !ok {
		return Alert{}, false
	}

	title, err := titleEl.Text()
	if err != nil {
		logger.Debugf(ctx, "Could not read alert title: %v", err)

		return Alert{}, false
	}

	message, err := messageEl.Text()
	if err != nil {
		logger.Debugf(ctx, "Could not read alert message: %v", err)

		return Alert{}, false
	}

	return Alert{Title: title, Message: message}, true
}

// checkMFA looks for an MFA prompt.
//
// TODO: any <form> on the page counts as an MFA prompt, which can
// false-positive on unrelated pages; scope the selector to the code input
// once the portal markup settles.
func (s *ServiceImpl) checkMFA(ctx context.Context) (*MFAPrompt, bool) {
	form, ok := s.session.Find(ctx, mfaFormSelector, elementWaitTimeout)
	if !ok {
		return nil, false
	}

	return &MFAPrompt{form: form}, true
}

// SendMFA answers a previously detected MFA prompt with the given code.
func (s *ServiceImpl) SendMFA(ctx context.Context, prompt *MFAPrompt, code string, trustedDevice bool) error {
	if prompt == nil || prompt.form == nil {
		return ErrNoMFAPrompt
	}

	codeField, ok := prompt.form.Find(mfaCodeSelector, mfaElementWaitTimeout)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMFAElementNotFound, mfaCodeSelector)
	}

	submit, ok := prompt.form.Find(mfaSubmitSelector, mfaElementWaitTimeout)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMFAElementNotFound, mfaSubmitSelector)
	}

	if err := codeField.Clear(); err != nil {
		return fmt.Errorf("failed to clear MFA code field: %w", err)
	}

	if err := codeField.Input(code); err != nil {
		return fmt.Errorf("failed to enter MFA code: %w", err)
	}

	if err := submit.Click(); err != nil {
		return fmt.Errorf("failed to submit MFA code: %w", err)
	}

	logger.Debugf(ctx, "MFA code submitted (trusted device: %t)", trustedDevice)

	return nil
}

// Close persists non-sensitive session cookies and quits the browser.
func (s *ServiceImpl) Close(ctx context.Context) error {
	if s.session == nil {
		return nil
	}

	if err := s.persistCookies(ctx); err != nil {
		// Teardown must not fail over a cache write: the token flow already finished.
		logger.Warnf(ctx, "Could not persist cookie cache: %v", err)
	}

	err := s.session.Close(ctx)
	s.session = nil

	return err
}

// findAuthCookie extracts the token from the auth cookie, if present.
func findAuthCookie(cookies []*proto.NetworkCookie) (Token, bool) {
	for _, cookie := range cookies {
		if cookie == nil || cookie.Name != authCookieName {
			continue
		}

		return Token{
			Value:     cookie.Value,
			ExpiresAt: cookieExpiry(cookie),
		}, true
	}

	return Token{}, false
}

// cookieExpiry converts the driver's seconds-since-epoch expiry.
// Non-positive values mean a session cookie and map to the zero time.
func cookieExpiry(cookie *proto.NetworkCookie) time.Time {
	if cookie.Expires <= 0 {
		return time.Time{}
	}

	return time.Unix(int64(cookie.Expires), 0)
}
