package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sso-tools/sso-grabber/internal/constants"
	"github.com/sso-tools/sso-grabber/internal/logger"
	"github.com/sso-tools/sso-grabber/internal/utils"
)

// Config holds all configuration settings.
type Config struct {
	// PortalURL is the address of the SSO portal to log in to.
	PortalURL string `mapstructure:"portal_url"`
	// Username is the portal login name; together with PortalURL it keys the cookie cache.
	Username string `mapstructure:"username"`
	// Headless controls whether the browser runs without a visible window.
	Headless bool `mapstructure:"headless"`
	// CookieDir is the directory for persisted session cookies.
	// Empty disables cookie persistence entirely.
	CookieDir string `mapstructure:"cookie_dir"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// AuthToken is the last authentication token extracted from the portal.
	AuthToken string `mapstructure:"auth_token"`
	// TokenExpiresAt is the RFC 3339 expiry timestamp of AuthToken.
	TokenExpiresAt string `mapstructure:"token_expires_at"`

	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".sso-grabber.yaml"

	// DefaultLogLevel is the log level used when the config does not set one.
	DefaultLogLevel = "info"
)

// Static error definitions for better error handling.
var (
	// ErrEmptyPortalURL indicates that the portal URL is missing.
	ErrEmptyPortalURL = errors.New("portal URL cannot be empty")
	// ErrInvalidPortalURL indicates that the portal URL is not a usable http(s) URL.
	ErrInvalidPortalURL = errors.New("portal URL must be a valid http(s) URL")
	// ErrEmptyUsername indicates that the username is missing.
	ErrEmptyUsername = errors.New("username cannot be empty")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
)

// LoadConfig loads configuration settings from a YAML file.
// A missing file is not an error: every setting can come from flags,
// so the file only provides overrides and persisted state.
func LoadConfig(configFilename string) (*Config, error) {
	if configFilename == "" {
		configFilename = DefaultConfigFilename
	}

	viper.SetConfigFile(configFilename)
	viper.SetDefault("headless", true)
	viper.SetDefault("log_level", DefaultLogLevel)

	exists, err := utils.IsFileExist(configFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	if exists {
		if err = viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config from file: %w", err)
		}
	}

	var cfg Config
	if err = viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity and sets derived fields.
func ValidateConfig(cfg *Config) error {
	portalURL := strings.TrimSpace(cfg.PortalURL)
	if portalURL == "" {
		return ErrEmptyPortalURL
	}

	parsed, err := url.Parse(portalURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: '%s'", ErrInvalidPortalURL, cfg.PortalURL)
	}

	cfg.PortalURL = portalURL

	if strings.TrimSpace(cfg.Username) == "" {
		return ErrEmptyUsername
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	return nil
}

// SaveConfig saves the extracted token to the file while preserving the original format and order.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	// Read the original file content.
	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg, err)
	}

	// Parse YAML while preserving order using yaml.Node.
	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	ensureDocument(&node)
	upsertStringValue(&node, "auth_token", cfg.AuthToken)
	upsertStringValue(&node, "token_expires_at", cfg.TokenExpiresAt)

	// Marshal back to YAML (preserves order).
	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	// Write the file back with preserved order.
	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file if it doesn't exist.
func handleMissingConfigFile(configFile string, cfg *Config, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// File doesn't exist, create it with viper.
	viper.Set("auth_token", cfg.AuthToken)
	viper.Set("token_expires_at", cfg.TokenExpiresAt)

	if err = viper.SafeWriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// ensureDocument makes sure the node tree has a document with a mapping root,
// so values can be upserted into an empty file.
func ensureDocument(node *yaml.Node) {
	if node.Kind == 0 {
		node.Kind = yaml.DocumentNode
	}

	if len(node.Content) == 0 {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
	}
}

// upsertStringValue updates the value of key in the YAML node tree,
// appending the key if it is not present yet.
func upsertStringValue(node *yaml.Node, key, value string) {
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	// Key-value pairs are stored as alternating nodes.
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		keyNode := mapNode.Content[i]
		valueNode := mapNode.Content[i+1]

		if keyNode.Value == key {
			// Update the value while preserving style.
			valueNode.Value = value
			valueNode.Tag = "!!str"

			// Ensure it's quoted if it contains special characters.
			if valueNode.Style == 0 {
				valueNode.Style = yaml.DoubleQuotedStyle
			}

			return
		}
	}

	mapNode.Content = append(mapNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle},
	)
}
