package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kside/internal/compiler"
	"kside/internal/logging"
	"kside/internal/wire"
	"kside/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Serve the reference compiler over stdin/stdout",
	Long:  `Run the reference compiler worker. It announces itself with a ready message, then answers compile, setOptions, allDiags and reset requests framed on stdin/stdout until stdin closes.`,
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}
	codec, err := wire.Lookup(cfg.Worker.Codec)
	if err != nil {
		return err
	}
	logger := logging.Named("worker")
	logger.Debug("serving", zap.String("codec", codec.Name()), zap.Int("pid", os.Getpid()))

	err = worker.Serve(cmd.Context(), worker.NewStream(os.Stdin, os.Stdout), codec, compiler.NewService())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
