package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sso-tools/sso-grabber/internal/app"
	"github.com/sso-tools/sso-grabber/internal/config"
	"github.com/sso-tools/sso-grabber/internal/logger"
)

var (
	//nolint:gochecknoglobals // It is required for configuration initialization before the application starts.
	configFilenameFromFlag string

	//nolint:gochecknoglobals,lll // It is initialized once during the application's startup and shared across the command execution logic.
	appConfig *config.Config

	//nolint:gochecknoglobals,lll // Cobra command requires a global definition for proper command-line parsing and execution.
	rootCmd = &cobra.Command{
		Use:   "sso-grabber [flags]",
		Short: "Log in to an AWS SSO portal and extract the authentication token.",
		Long: `SSO Grabber is a CLI tool that drives a browser through an AWS SSO portal login
and extracts the resulting authentication token.

The login flow:
- Navigates to the portal and restores cached session cookies
- Fills in the username and password forms when the portal shows them
- Prompts for an MFA code when the portal asks for one
- Extracts the token from the portal's auth cookie

The token and its expiry are saved to the configuration file. Session cookies
(except the auth cookie itself) are cached on disk so subsequent runs can skip
the login form entirely.`,
		Args:             cobra.NoArgs,
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := bindFlagsToConfig(cmd.Flags(), appConfig); err != nil {
				logger.Fatalf(cmd.Context(), "Failed to parse flags: %v", err)
			}

			password, _ := cmd.Flags().GetString("password")
			trustDevice, _ := cmd.Flags().GetBool("trust-device")

			app.ExecuteRootCommand(cmd.Context(), appConfig, password, trustDevice)
		},
	}
)

// Execute executes the root command.
func Execute() {
	signals := []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)

	defer func() {
		_ = logger.Logger().Sync()
	}()

	defer stop()

	go func() {
		defer stop()

		err := rootCmd.ExecuteContext(ctx)
		cobra.CheckErr(err)
	}()

	<-ctx.Done()
}

//nolint:gochecknoinits // Cobra requires the init function to set up flags before the command is executed.
func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configFilenameFromFlag,
		"config",
		"c",
		"",
		fmt.Sprintf("path to the configuration file (default is '%s')",
			config.DefaultConfigFilename))

	rootCmdFlags := rootCmd.Flags()

	rootCmdFlags.StringP(
		"url",
		"u",
		"",
		"address of the SSO portal, for example: https://d-12345.awsapps.com/start.")

	rootCmdFlags.StringP(
		"username",
		"n",
		"",
		"portal login name.")

	rootCmdFlags.StringP(
		"password",
		"p",
		"",
		"portal password (prompted interactively when omitted).")

	rootCmdFlags.StringP(
		"cookie-dir",
		"d",
		"",
		"directory for cached session cookies (empty disables caching).")

	rootCmdFlags.Bool(
		"headless",
		true,
		"run the browser without a visible window.")

	rootCmdFlags.Bool(
		"trust-device",
		true,
		"ask the portal to remember this device when answering an MFA prompt.")

	rootCmdFlags.String(
		"log-level",
		"",
		"logging verbosity: debug, info, warn, error.")
}

func initConfig(cmd *cobra.Command, _ []string) {
	var err error

	appConfig, err = config.LoadConfig(configFilenameFromFlag)
	if err != nil {
		logger.Fatalf(cmd.Context(), "Failed to load configuration: %v", err)
	}

	// Apply the config file's level right away so subcommands that never
	// bind flags (such as version) still log at the configured level.
	// A bad value surfaces later through ValidateConfig.
	if level, ok := logger.ParseLogLevel(appConfig.LogLevel); ok {
		logger.SetLevel(level)
	}
}

func bindFlagsToConfig(flags *pflag.FlagSet, cfg *config.Config) error {
	if flag := flags.Lookup("url"); flag != nil && flag.Changed {
		cfg.PortalURL, _ = flags.GetString("url")
	}

	if flag := flags.Lookup("username"); flag != nil && flag.Changed {
		cfg.Username, _ = flags.GetString("username")
	}

	if flag := flags.Lookup("cookie-dir"); flag != nil && flag.Changed {
		cfg.CookieDir, _ = flags.GetString("cookie-dir")
	}

	if flag := flags.Lookup("headless"); flag != nil && flag.Changed {
		cfg.Headless, _ = flags.GetBool("headless")
	}

	if flag := flags.Lookup("log-level"); flag != nil && flag.Changed {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	// Validation parsed the final level, flag overrides included.
	logger.SetLevel(cfg.ParsedLogLevel)

	return nil
}
