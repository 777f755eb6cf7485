package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"kside/internal/diag"
	"kside/internal/logging"
	"kside/internal/project"
	"kside/internal/wire"
	"kside/internal/worker"
)

// BinaryJS is the compiled program output file.
const BinaryJS = "binary.js"

// flashBase is where the program image is loaded.
const flashBase = 0x00018000

var (
	errMissingOptions = errors.New("missing options")
	errNoOptions      = errors.New("options not set")
	errMissingTarget  = errors.New("missing compile target")
)

// Service handles worker requests. It keeps the options of the last
// setOptions call for allDiags.
type Service struct {
	mu      sync.Mutex
	options *project.CompileOptions
	logger  *zap.Logger
}

// NewService creates a worker service with no options set.
func NewService() *Service {
	return &Service{logger: logging.Named("compiler")}
}

var _ worker.Service = (*Service)(nil)

func (s *Service) Handle(ctx context.Context, req worker.Request) (any, error) {
	switch req.Op {
	case wire.OpCompile:
		opts, err := decodeOptions(req)
		if err != nil {
			return nil, err
		}
		return Compile(ctx, opts)
	case wire.OpSetOptions:
		opts, err := decodeOptions(req)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.options = opts
		s.mu.Unlock()
		s.logger.Debug("options set", zap.Int("sources", len(opts.SourceFiles)))
		return nil, nil
	case wire.OpAllDiags:
		s.mu.Lock()
		opts := s.options
		s.mu.Unlock()
		if opts == nil {
			return nil, errNoOptions
		}
		return project.DiagnosticsResult{Diagnostics: Check(ctx, opts)}, nil
	case wire.OpReset:
		s.mu.Lock()
		s.options = nil
		s.mu.Unlock()
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", req.Op)
	}
}

func decodeOptions(req worker.Request) (*project.CompileOptions, error) {
	var arg project.CompileArg
	if err := req.Decode(&arg); err != nil {
		return nil, err
	}
	if arg.Options == nil {
		return nil, errMissingOptions
	}
	return arg.Options, nil
}

// Compile checks opts and, when there are no errors, builds the program
// and its target image.
func Compile(ctx context.Context, opts *project.CompileOptions) (*project.CompileResult, error) {
	if strings.TrimSpace(opts.Target) == "" {
		return nil, errMissingTarget
	}
	diags := Check(ctx, opts)
	res := &project.CompileResult{
		OutFiles:    map[string]string{},
		Diagnostics: diags,
	}
	if diag.HasErrors(diags) {
		return res, nil
	}
	program := Link(opts)
	res.OutFiles[BinaryJS] = program
	res.OutFiles[opts.ArtifactName()] = EncodeHex([]byte(program), flashBase)
	return res, nil
}

// Link concatenates the source files into one program, in SourceFiles
// order, each preceded by a marker comment.
func Link(opts *project.CompileOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// target: %s\n", opts.Target)
	for _, name := range opts.SourceFiles {
		content, ok := opts.FileSystem[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "// %s\n", name)
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
