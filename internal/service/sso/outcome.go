package sso

import (
	"time"

	"github.com/sso-tools/sso-grabber/internal/browser"
)

// Token is the authentication token extracted from the portal's auth cookie.
type Token struct {
	// Value is the raw cookie value.
	Value string
	// ExpiresAt is the cookie expiry. Zero for session cookies.
	ExpiresAt time.Time
}

// Alert is a login error banner scraped from the portal.
type Alert struct {
	// Title is the banner headline, e.g. "Incorrect username or password.".
	Title string
	// Message is the banner body, e.g. "Try again.".
	Message string
}

// String renders the alert the way the portal reads: "title: message".
func (a Alert) String() string {
	return a.Title + ": " + a.Message
}

// MFAPrompt is a handle on a detected MFA form, to be answered via SendMFA.
type MFAPrompt struct {
	form browser.Element
}

// OutcomeKind tags the variant carried by a LoginOutcome.
type OutcomeKind uint8

const (
	// OutcomeUnknown is the zero value; RefreshToken never returns it without an error.
	OutcomeUnknown OutcomeKind = iota
	// OutcomeToken means login succeeded and Token is set.
	OutcomeToken
	// OutcomeAlert means the portal reported a login error and Alert is set.
	OutcomeAlert
	// OutcomeMFARequired means the portal asked for a second factor and MFA is set.
	OutcomeMFARequired
)

// String returns a human-readable name for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeToken:
		return "token"
	case OutcomeAlert:
		return "alert"
	case OutcomeMFARequired:
		return "mfa required"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// LoginOutcome is the three-way result of a login attempt.
// Exactly one of Token, Alert or MFA is meaningful, selected by Kind.
type LoginOutcome struct {
	Kind  OutcomeKind
	Token Token
	Alert Alert
	MFA   *MFAPrompt
}
