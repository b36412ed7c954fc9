package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/managershow/esteira/internal/models"
)

// TenantEnv holds the tenant used when --tenant is not given
const TenantEnv = "ESTEIRA_TENANT"

var (
	ErrUsage       = errors.New("invalid usage")
	ErrUnknownKind = errors.New("unknown board kind")
)

// ParseKind maps a board name to its kind. Accepts the Portuguese board
// names used in the app as aliases.
func ParseKind(s string) (models.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shows", "show", "agenda":
		return models.KindShow, nil
	case "leads", "lead", "crm":
		return models.KindLead, nil
	}
	return "", fmt.Errorf("%w '%s' (must be: shows, leads)", ErrUnknownKind, s)
}

// GetTenant reads the tenant from --tenant, falling back to ESTEIRA_TENANT
func GetTenant(cmd *cobra.Command) (string, error) {
	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		tenant = os.Getenv(TenantEnv)
	}
	if tenant == "" {
		return "", fmt.Errorf("%w: no tenant specified (use --tenant or set %s)", ErrUsage, TenantEnv)
	}
	return tenant, nil
}

// GetKind reads and parses --kind
func GetKind(cmd *cobra.Command) (models.Kind, error) {
	kind, _ := cmd.Flags().GetString("kind")
	return ParseKind(kind)
}

// AddBoardFlags registers --tenant and --kind
func AddBoardFlags(cmd *cobra.Command) {
	cmd.Flags().String("tenant", "", "Tenant ID (defaults to $"+TenantEnv+")")
	cmd.Flags().String("kind", "shows", "Board: shows (Agenda) or leads (CRM)")
}

// AddOutputFlags registers the agent-friendly output flags
func AddOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (ID only)")
}

// GetFormatter builds the output formatter from --json and --quiet,
// writing where the command writes
func GetFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return &OutputFormatter{
		JSON:  jsonOutput,
		Quiet: quietMode,
		Out:   cmd.OutOrStdout(),
		Err:   cmd.ErrOrStderr(),
	}
}

// ErrorCode names an error for the JSON error envelope
func ErrorCode(err error) string {
	switch ExitCodeFor(err) {
	case ExitUsage:
		return "USAGE_ERROR"
	case ExitNotFound:
		return "NOT_FOUND"
	case ExitDataErr:
		return "UNKNOWN_STAGE"
	case ExitValidation:
		if errors.Is(err, models.ErrIllegalTransition) {
			return "ILLEGAL_TRANSITION"
		}
		return "VALIDATION_ERROR"
	case ExitConflict:
		if errors.Is(err, models.ErrStaleState) {
			return "STALE_STATE"
		}
		return "SESSION_CONFLICT"
	case ExitUnavailable:
		return "TRANSITION_FAILED"
	default:
		return "ERROR"
	}
}
