package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kside/internal/logging"
	"kside/internal/project"
	"kside/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [dir]",
	Short: "Re-typecheck a package whenever its files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Bool("diagnostics", false, "print every diagnostic after the status line")
	watchCmd.Flags().Duration("debounce", 0, "settle delay before re-checking (default: watch.debounce_ms)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	showDiags, err := cmd.Flags().GetBool("diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get diagnostics flag: %w", err)
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("failed to get debounce flag: %w", err)
	}

	s, err := openSession(cmd, dir, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	if debounce <= 0 {
		debounce = s.cfg.Watch.Debounce()
	}
	status := newStatusLine(cmd.OutOrStdout(), os.Stdout)
	logger := logging.Named("watch")

	check := func(ctx context.Context, changed []string) {
		for _, p := range changed {
			if filepath.Base(p) == project.ManifestFile {
				// options may have changed shape; start the worker from scratch
				if err := s.bridge.Reset(); err != nil {
					logger.Warn("reset failed", zap.Error(err))
				}
				break
			}
		}
		diags, err := s.bridge.TypecheckProject(ctx)
		status.Print(diags, changed, err)
		if showDiags && err == nil && len(diags) > 0 {
			status.Break()
			_ = renderDiagnostics(cmd, s, diags, "text", 0)
		}
	}

	check(cmd.Context(), nil)

	w, err := watch.New(s.project.Root, s.project, check,
		watch.WithDebounce(debounce),
		watch.WithIgnore(filepath.Base(s.outputDir())),
		watch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.project.Root, err)
	}
	err = w.Run(cmd.Context())
	status.Break()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
