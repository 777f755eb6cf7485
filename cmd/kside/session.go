package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kside/internal/bridge"
	"kside/internal/config"
	"kside/internal/lane"
	"kside/internal/logging"
	"kside/internal/observ"
	"kside/internal/project"
	"kside/internal/trace"
	"kside/internal/wire"
	"kside/internal/worker"
)

// session is one loaded package talking to one worker process.
type session struct {
	cfg     *config.Config
	project *project.Project
	bridge  *bridge.Bridge
	queue   *lane.Queue
	proc    *worker.Process
	timer   *observ.Timer
	span    *trace.Span
	cleanup []func()
}

// sessionOptions are per-command session settings.
type sessionOptions struct {
	download  bool   // write compile artifacts to the output directory
	outputDir string // overrides project.output_dir
	target    string // overrides project.target
	tests     bool   // include the main package's test files
}

// openSession loads the package at dir, starts the worker and performs the
// handshake. The caller must call close.
func openSession(cmd *cobra.Command, dir string, so sessionOptions) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if so.outputDir != "" {
		cfg.Project.OutputDir = so.outputDir
	}
	if so.target != "" {
		cfg.Project.Target = so.target
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	tr, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, cleanup: []func(){tr.close}}
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		s.close()
		return nil, err
	}
	s.cleanup = append(s.cleanup, stopProfiling)

	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if showTimings {
		s.timer = observ.NewTimer()
	}

	ctx, span := trace.StartSpan(cmd.Context(), trace.ScopeSession, "session")
	s.span = span
	cmd.SetContext(ctx)

	err = s.timer.Track("load", func() error {
		var lerr error
		s.project, lerr = project.Load(dir, cfg.Project.DependencyRoot)
		return lerr
	})
	if err != nil {
		s.close()
		return nil, err
	}
	logger := logging.Named("kside")
	logger.Debug("package loaded", zap.String("root", s.project.Root), zap.String("name", s.project.Manifest.Package.Name))

	codec, err := wire.Lookup(cfg.Worker.Codec)
	if err != nil {
		s.close()
		return nil, err
	}
	command, err := workerCommand(cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	command.Dir = s.project.Root
	s.proc, err = worker.Spawn(ctx, command)
	if err != nil {
		s.close()
		return nil, err
	}
	logger.Debug("worker started", zap.Int("pid", s.proc.Pid()), zap.String("codec", codec.Name()))

	s.queue = lane.New(
		lane.WithContext(ctx),
		lane.WithMaxLanes(cfg.Worker.MaxLanes),
		lane.WithLogger(logging.Named("lane")),
	)
	var providerOpts []project.ProviderOption
	if cfg.Project.Target != "" {
		providerOpts = append(providerOpts, project.WithTarget(cfg.Project.Target))
	}
	if so.tests {
		providerOpts = append(providerOpts, project.WithTests(true))
	}
	opts := []bridge.Option{
		bridge.WithQueue(s.queue),
		bridge.WithOptionsProvider(s.project.Provider(providerOpts...)),
		bridge.WithDependencyRoot(cfg.Project.DependencyRoot),
		bridge.WithTimer(s.timer),
		bridge.WithLogger(logging.Named("bridge")),
	}
	if so.download {
		opts = append(opts, bridge.WithDownloadSink(&fileSink{dir: s.outputDir(), out: cmd.ErrOrStderr()}))
	}
	s.bridge = bridge.New(worker.NewConn(s.proc, codec, worker.WithConnLogger(logging.Named("conn"))), s.project.Editor, opts...)
	tr.startPulse(cfg.Trace.Heartbeat, s.bridge.Pending)

	err = s.timer.Track("handshake", func() error {
		return s.bridge.Initialize().Err(ctx)
	})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("worker handshake: %w", err)
	}
	return s, nil
}

// workerCommand returns the configured worker, or this binary's own
// "worker" subcommand.
func workerCommand(cfg *config.Config) (worker.Command, error) {
	if len(cfg.Worker.Command) > 0 {
		return worker.Command{Path: cfg.Worker.Command[0], Args: cfg.Worker.Command[1:]}, nil
	}
	self, err := os.Executable()
	if err != nil {
		return worker.Command{}, fmt.Errorf("locate kside executable: %w", err)
	}
	args := []string{"worker", "--codec", cfg.Worker.Codec, "--log-level", cfg.Logging.Level}
	return worker.Command{Path: self, Args: args}, nil
}

// outputDir resolves the artifact directory against the package root.
func (s *session) outputDir() string {
	dir := s.cfg.Project.OutputDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.project.Root, dir)
	}
	return dir
}

func (s *session) close() {
	if s.bridge != nil {
		_ = s.bridge.Close()
	} else if s.proc != nil {
		_ = s.proc.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.span != nil {
		s.span.End("")
	}
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}
