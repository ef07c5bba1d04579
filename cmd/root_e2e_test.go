package cmd_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// testBinaryName is the name of the test binary for E2E tests.
	testBinaryName = "sso-grabber-test"
)

// TestMain builds the binary before running E2E tests.
func TestMain(m *testing.M) {
	// Build the binary for testing.
	//nolint:noctx // TestMain doesn't have access to context, and build is needed before tests run.
	buildCmd := exec.Command("go", "build", "-o", testBinaryName, "../.")
	if err := buildCmd.Run(); err != nil {
		os.Exit(1)
	}

	// Run tests.
	code := m.Run()

	// Cleanup.
	_ = os.Remove(testBinaryName)

	os.Exit(code)
}

// TestE2E_Version tests that the version subcommand prints build information.
func TestE2E_Version(t *testing.T) {
	t.Parallel()

	//nolint:gosec,noctx // Test binary name is a constant, not user input. No context available in test.
	cmd := exec.Command("./"+testBinaryName, "version")

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "version command failed: %s", string(output))

	outputStr := string(output)

	assert.Contains(t, outputStr, "sso-grabber")
	assert.Contains(t, outputStr, "version:")
	assert.Contains(t, outputStr, "commit:")
}

// TestE2E_Help tests that the help output documents the login flags.
func TestE2E_Help(t *testing.T) {
	t.Parallel()

	//nolint:gosec,noctx // Test binary name is a constant, not user input. No context available in test.
	cmd := exec.Command("./"+testBinaryName, "--help")

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "help command failed: %s", string(output))

	outputStr := string(output)

	for _, flag := range []string{"--url", "--username", "--password", "--cookie-dir", "--headless", "--trust-device"} {
		assert.Contains(t, outputStr, flag)
	}
}

// TestE2E_InvalidFlags tests that invalid flag values are rejected before any browser starts.
func TestE2E_InvalidFlags(t *testing.T) {
	t.Parallel()

	baseConfig := `
portal_url: "https://d-12345.awsapps.com/start"
username: "jdoe"
headless: true
log_level: "info"
`

	tests := []struct {
		name             string
		flags            []string
		expectedErrorMsg string
	}{
		{
			name:             "invalid portal URL",
			flags:            []string{"--url", "not-a-url"},
			expectedErrorMsg: "portal URL must be a valid http(s) URL",
		},
		{
			name:             "blank username",
			flags:            []string{"--username", "   "},
			expectedErrorMsg: "username cannot be empty",
		},
		{
			name:             "unknown log level",
			flags:            []string{"--log-level", "chatty"},
			expectedErrorMsg: "unknown log level",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Create temp directory and config file.
			tempDir := t.TempDir()
			configPath := filepath.Join(tempDir, "test-config.yaml")
			err := os.WriteFile(configPath, []byte(baseConfig), 0o644) //nolint:gosec // It's a test file.
			require.NoError(t, err)

			args := []string{"--config", configPath}
			args = append(args, tt.flags...)

			// Run the binary.
			//nolint:gosec,noctx // Test binary name is a constant, not user input. No context available in test.
			cmd := exec.Command("./"+testBinaryName, args...)
			output, err := cmd.CombinedOutput()

			// Should fail with error.
			require.Error(t, err)

			outputStr := string(output)

			assert.Contains(t, strings.ToLower(outputStr), strings.ToLower(tt.expectedErrorMsg),
				"Expected error message about '%s' but got: %s", tt.expectedErrorMsg, outputStr)
		})
	}
}
