// Package app provides the main application logic for grabbing an SSO token.
// It opens a browser session against the configured portal, drives the login
// flow including MFA, and persists the extracted token to the configuration file.
package app
