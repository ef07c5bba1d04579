// Package cookiecache persists non-sensitive browser cookies between runs.
//
// Cookie sets are stored as one JSON file per identity, keyed by a hash of
// "username@url", so a later run can re-inject them and skip the
// username/password steps of the portal login. Expiry is deliberately not
// persisted: re-injecting an expired timestamp makes the browser driver
// reject the cookie, while an expiry-less cookie is simply treated as a
// session cookie.
package cookiecache
