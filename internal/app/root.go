package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/sso-tools/sso-grabber/internal/config"
	"github.com/sso-tools/sso-grabber/internal/logger"
	"github.com/sso-tools/sso-grabber/internal/service/sso"
)

// ExecuteRootCommand is the entry point for the application.
// It opens a browser session, drives the portal login flow,
// and saves the extracted token to the configuration file.
func ExecuteRootCommand(ctx context.Context, cfg *config.Config, password string, trustDevice bool) {
	if password == "" {
		password = promptPassword(ctx, cfg.Username)
	}

	service, err := sso.NewService(cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize SSO service: %v", err)
	}

	if err = service.Open(ctx); err != nil {
		logger.Fatalf(ctx, "Failed to open browser session: %v", err)
	}

	defer func() {
		if closeErr := service.Close(ctx); closeErr != nil {
			logger.Warnf(ctx, "Failed to close browser session: %v", closeErr)
		}
	}()

	outcome, err := service.RefreshToken(ctx, cfg.Username, password, true)
	if err != nil {
		logger.Fatalf(ctx, "Failed to log in to %s: %v", cfg.PortalURL, err)
	}

	token := outcome.Token

	switch outcome.Kind {
	case sso.OutcomeToken:
	case sso.OutcomeAlert:
		logger.Fatalf(ctx, "Portal rejected the login: %s", outcome.Alert)
	case sso.OutcomeMFARequired:
		code := promptMFACode(ctx)

		if err = service.SendMFA(ctx, outcome.MFA, code, trustDevice); err != nil {
			logger.Fatalf(ctx, "Failed to submit MFA code: %v", err)
		}

		token, err = service.GetToken(ctx, true)
		if err != nil {
			logger.Fatalf(ctx, "Failed to extract token after MFA: %v", err)
		}
	case sso.OutcomeUnknown:
		logger.Fatalf(ctx, "Login finished in an unexpected state")
	}

	saveToken(ctx, cfg, token)
}

// promptPassword reads the portal password from the terminal without echo.
func promptPassword(ctx context.Context, username string) string {
	fmt.Printf("Password for %s: ", username) //nolint:forbidigo // Interactive prompt, not logging.

	password, err := term.ReadPassword(int(os.Stdin.Fd()))

	fmt.Println() //nolint:forbidigo // Finish the prompt line after no-echo input.

	if err != nil {
		logger.Fatalf(ctx, "Failed to read password: %v", err)
	}

	return string(password)
}

// promptMFACode reads the one-time MFA code from standard input.
func promptMFACode(ctx context.Context) string {
	fmt.Print("Enter MFA code: ") //nolint:forbidigo // Interactive prompt, not logging.

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		logger.Fatalf(ctx, "Failed to read MFA code: %v", err)
	}

	return strings.TrimSpace(code)
}

// saveToken stores the token and its expiry in the configuration file.
func saveToken(ctx context.Context, cfg *config.Config, token sso.Token) {
	cfg.AuthToken = token.Value

	if token.ExpiresAt.IsZero() {
		cfg.TokenExpiresAt = ""

		logger.Info(ctx, "Token extracted, session-scoped (no expiry)")
	} else {
		cfg.TokenExpiresAt = token.ExpiresAt.Format(time.RFC3339)

		logger.Infof(ctx, "Token extracted, expires %s", humanize.Time(token.ExpiresAt))
	}

	if err := config.SaveConfig(cfg); err != nil {
		logger.Fatalf(ctx, "Failed to save configuration: %v", err)
	}

	logger.Info(ctx, "Configuration updated successfully!")
}
