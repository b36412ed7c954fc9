package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/app"
	"github.com/managershow/esteira/internal/cli"
	"github.com/managershow/esteira/internal/testutil"
)

// ExecuteCLICommand executes a CLI command with a test app instance and
// returns what it wrote to stdout. Commands pick the app up through
// cli.GetCLIFromContext.
func ExecuteCLICommand(t *testing.T, testApp *app.App, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	if testApp == nil {
		t.Fatal("testApp cannot be nil - SetupCLITest must be called first")
	}

	return ExecuteCLICommandWithContext(t, context.Background(), testApp, cmd, args)
}

// ExecuteCLICommandWithContext executes a CLI command with a specific context and test app
func ExecuteCLICommandWithContext(t *testing.T, ctx context.Context, testApp *app.App, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	stdout, _, err := ExecuteCLICommandFull(t, ctx, testApp, cmd, args)
	return stdout, err
}

// ExecuteCLICommandFull also returns stderr
func ExecuteCLICommandFull(t *testing.T, ctx context.Context, testApp *app.App, cmd *cobra.Command, args []string) (string, string, error) {
	t.Helper()

	// Tenant context from the developer's shell must not leak into tests
	t.Setenv(cli.TenantEnv, "")

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	testutil.SetupCobraCommand(cmd, args)

	err := cmd.ExecuteContext(cli.WithApp(ctx, testApp))
	return stdout.String(), stderr.String(), err
}
