package sso

import (
	"context"
	"fmt"

	"github.com/sso-tools/sso-grabber/internal/cookiecache"
	"github.com/sso-tools/sso-grabber/internal/logger"
)

// restoreCookies injects this identity's cached cookies into the session.
// Missing caches are fine; an unreadable cache is a real error.
func (s *ServiceImpl) restoreCookies(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	records, err := s.store.Load(s.cacheKey)
	if err != nil {
		return fmt.Errorf("failed to load cookie cache: %w", err)
	}

	if len(records) == 0 {
		logger.Debug(ctx, "No cached cookies for this identity")

		return nil
	}

	logger.Debugf(ctx, "Restoring %d cached cookies", len(records))

	if err = s.session.SetCookies(ctx, cookiecache.Params(records)); err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}

	return nil
}

// persistCookies overwrites this identity's cookie cache with the live
// session cookies, always excluding the auth cookie itself: a cached token
// would be stale by the next run and must be re-earned through login.
func (s *ServiceImpl) persistCookies(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	cookies, err := s.session.Cookies(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to read session cookies: %w", err)
	}

	records := cookiecache.FilterCookies(cookies, authCookieName)

	if err = s.store.Save(s.cacheKey, records); err != nil {
		return fmt.Errorf("failed to save cookie cache: %w", err)
	}

	logger.Debugf(ctx, "Persisted %d cookies to cache", len(records))

	return nil
}
