package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kside/internal/diag"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [dir]",
	Short: "Compile a package with the worker and save its artifact",
	Long:  `Load the package containing dir (default: current directory), compile it in a worker process, write <target>-<name>.hex to the output directory and report diagnostics`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().String("format", "text", "diagnostics format (text|json)")
	compileCmd.Flags().String("out", "", "artifact directory (default: <package>/built)")
	compileCmd.Flags().String("target", "", "compile target (default: from kind.toml)")
	compileCmd.Flags().Bool("no-download", false, "do not write the target artifact")
	compileCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
}

func runCompile(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	target, err := cmd.Flags().GetString("target")
	if err != nil {
		return fmt.Errorf("failed to get target flag: %w", err)
	}
	noDownload, err := cmd.Flags().GetBool("no-download")
	if err != nil {
		return fmt.Errorf("failed to get no-download flag: %w", err)
	}
	maxDiagnostics, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	s, err := openSession(cmd, dir, sessionOptions{download: !noDownload, outputDir: out, target: target})
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.bridge.CompileProject(cmd.Context())
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if err := renderDiagnostics(cmd, s, res.Diagnostics, format, maxDiagnostics); err != nil {
		return err
	}
	printTimings(cmd, s)
	if diag.HasErrors(res.Diagnostics) {
		return errDiagnostics
	}
	return nil
}
