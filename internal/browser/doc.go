// Package browser wraps the go-rod browser driver behind a narrow interface.
//
// The SSO login flow only needs a handful of capabilities: navigate, go back,
// read and inject cookies, and timeout-bounded optional element lookup with
// click/clear/type. Keeping them behind the Session and Element interfaces
// lets the flow be tested without a real browser.
package browser
