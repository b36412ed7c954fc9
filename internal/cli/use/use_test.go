package use

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/managershow/esteira/internal/cli"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := TenantCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestUseTenant_Export(t *testing.T) {
	out, errOut, err := run(t, "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "export ESTEIRA_TENANT=\"acme\"\n" {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "Now using tenant acme") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestUseTenant_Clear(t *testing.T) {
	out, _, err := run(t, "--clear")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "unset ESTEIRA_TENANT\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestUseTenant_DryRunPrintsNothingToEval(t *testing.T) {
	out, errOut, err := run(t, "acme", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("dry run wrote to stdout: %q", out)
	}
	if !strings.Contains(errOut, "Would set ESTEIRA_TENANT=acme") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestUseTenant_Show(t *testing.T) {
	t.Setenv(cli.TenantEnv, "")
	out, _, err := run(t, "--show")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No tenant context set") {
		t.Errorf("stdout = %q", out)
	}

	t.Setenv(cli.TenantEnv, "acme")
	out, _, err = run(t, "--show")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Current tenant: acme\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestUseTenant_MissingArg(t *testing.T) {
	_, _, err := run(t)
	if !errors.Is(err, cli.ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
}
