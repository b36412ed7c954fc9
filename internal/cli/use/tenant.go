package use

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/cli"
)

// TenantCmd returns the use tenant subcommand
func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant [tenant-id]",
		Short: "Set tenant context for current shell session",
		Long: `Set the current tenant context using environment variables.
This command outputs shell commands that should be evaluated:

  eval $(esteira use tenant acme)        # Use tenant acme
  eval $(esteira use tenant --clear)     # Clear tenant context
  esteira use tenant --show              # Show current tenant

The ESTEIRA_TENANT environment variable will be set in your current shell
session only. The --tenant flag on other commands takes precedence over
this environment variable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUseTenant,
	}

	cmd.Flags().Bool("clear", false, "Clear the current tenant context")
	cmd.Flags().Bool("show", false, "Show the current tenant context")
	cmd.Flags().Bool("dry-run", false, "Show what would be exported without outputting shell commands")

	return cmd
}

func runUseTenant(cmd *cobra.Command, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	clearFlag, _ := cmd.Flags().GetBool("clear")
	showFlag, _ := cmd.Flags().GetBool("show")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if showFlag {
		current := os.Getenv(cli.TenantEnv)
		if current == "" {
			fmt.Fprintln(out, "No tenant context set")
			fmt.Fprintln(out, "Use 'eval $(esteira use tenant <tenant-id>)' to set one")
			return nil
		}
		fmt.Fprintf(out, "Current tenant: %s\n", current)
		return nil
	}

	if clearFlag {
		if dryRun {
			fmt.Fprintf(errOut, "Would clear %s\n", cli.TenantEnv)
			return nil
		}
		fmt.Fprintf(out, "unset %s\n", cli.TenantEnv)
		fmt.Fprintln(errOut, "Cleared tenant context")
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: tenant ID required\nUsage: eval $(esteira use tenant <tenant-id>)", cli.ErrUsage)
	}
	tenantID := args[0]

	if dryRun {
		fmt.Fprintf(errOut, "Would set %s=%s\n", cli.TenantEnv, tenantID)
		return nil
	}

	fmt.Fprintf(out, "export %s=%q\n", cli.TenantEnv, tenantID)
	fmt.Fprintf(errOut, "Now using tenant %s\n", tenantID)
	return nil
}
