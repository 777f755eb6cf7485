package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kside/internal/diag"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [dir]",
	Short: "Typecheck a package without producing artifacts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "text", "diagnostics format (text|json)")
	checkCmd.Flags().Bool("tests", false, "include the package's test files")
	checkCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	tests, err := cmd.Flags().GetBool("tests")
	if err != nil {
		return fmt.Errorf("failed to get tests flag: %w", err)
	}
	maxDiagnostics, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	s, err := openSession(cmd, dir, sessionOptions{tests: tests})
	if err != nil {
		return err
	}
	defer s.close()

	diags, err := s.bridge.TypecheckProject(cmd.Context())
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if err := renderDiagnostics(cmd, s, diags, format, maxDiagnostics); err != nil {
		return err
	}
	printTimings(cmd, s)
	if diag.HasErrors(diags) {
		return errDiagnostics
	}
	return nil
}
