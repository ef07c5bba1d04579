package cookiecache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-rod/rod/lib/proto"

	"github.com/sso-tools/sso-grabber/internal/utils"
)

// CacheKey derives the cache file key for a (username, url) identity.
// The key is the hex-encoded SHA-256 of "username@url", so the same identity
// always maps to the same file and distinct identities practically never collide.
func CacheKey(username, url string) string {
	sum := sha256.Sum256([]byte(username + "@" + url))

	return hex.EncodeToString(sum[:])
}

// Record is a single persisted cookie.
// It intentionally has no expiry field: see the package documentation.
type Record struct {
	// Name is the cookie name.
	Name string `json:"name"`
	// Value is the cookie value.
	Value string `json:"value"`
	// Domain is the cookie domain.
	Domain string `json:"domain,omitempty"`
	// Path is the cookie path.
	Path string `json:"path,omitempty"`
	// Secure marks the cookie as HTTPS-only.
	Secure bool `json:"secure,omitempty"`
	// HTTPOnly marks the cookie as inaccessible to page scripts.
	HTTPOnly bool `json:"http_only,omitempty"`
	// SameSite is the cookie's SameSite policy, if any.
	SameSite string `json:"same_site,omitempty"`
}

// Param converts the record into a cookie parameter the browser driver can re-inject.
func (r Record) Param() *proto.NetworkCookieParam {
	return &proto.NetworkCookieParam{
		Name:     r.Name,
		Value:    r.Value,
		Domain:   r.Domain,
		Path:     r.Path,
		Secure:   r.Secure,
		HTTPOnly: r.HTTPOnly,
		SameSite: proto.NetworkCookieSameSite(r.SameSite),
	}
}

// FilterCookies converts live browser cookies into persistable records,
// dropping every cookie whose name appears in the exclude list.
func FilterCookies(cookies []*proto.NetworkCookie, exclude ...string) []Record {
	kept := make([]*proto.NetworkCookie, 0, len(cookies))

	for _, cookie := range cookies {
		if cookie == nil || slices.Contains(exclude, cookie.Name) {
			continue
		}

		kept = append(kept, cookie)
	}

	return utils.Map(kept, func(cookie *proto.NetworkCookie) Record {
		return Record{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HTTPOnly,
			SameSite: string(cookie.SameSite),
		}
	})
}

// Params converts a record slice into driver cookie parameters.
func Params(records []Record) []*proto.NetworkCookieParam {
	return utils.Map(records, Record.Param)
}
