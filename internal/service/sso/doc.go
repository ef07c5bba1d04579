// Package sso drives the browser through the SSO portal's login flow.
//
// The service navigates to the portal, best-effort fills whatever login form
// steps the portal presents, and extracts the short-lived authentication
// token from the portal's auth cookie. Interrupted flows are classified into
// a site-reported alert or an MFA prompt, and non-sensitive session cookies
// are persisted between runs so cached sessions skip the credential steps.
package sso
