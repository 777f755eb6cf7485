package bridge

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"kside/internal/diag"
	"kside/internal/diagfmt"
	"kside/internal/project"
	"kside/internal/trace"
	"kside/internal/wire"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ArtifactFilename is the download name for a target artifact of project
// name. Only the first run of non-alphanumeric characters becomes "-", so
// "My Project!" gives "microbit-My-Project!.hex".
func ArtifactFilename(target, name string) string {
	if loc := unsafeNameChars.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + "-" + name[loc[1]:]
	}
	return fmt.Sprintf("%s-%s.hex", target, name)
}

// ArtifactMimeType is the content type announced for a target artifact.
func ArtifactMimeType(target string) string {
	return "application/x-" + target + "-hex"
}

func (b *Bridge) compile(ctx context.Context, opts *project.CompileOptions) (*CompileResult, error) {
	raw, err := b.call(ctx, wire.OpCompile, project.CompileArg{Options: opts})
	if err != nil {
		return nil, err
	}
	var res project.CompileResult
	if err := wire.Decode(b.ch.Codec(), raw, &res); err != nil {
		return nil, fmt.Errorf("decode compile result: %w", err)
	}

	b.deliverArtifact(opts, res.OutFiles)
	b.ws.SetFiles(res.OutFiles)
	sum := b.reduce(ctx, opts, res.Diagnostics)

	return &CompileResult{
		OutFiles:    res.OutFiles,
		Diagnostics: res.Diagnostics,
		Summary:     sum,
	}, nil
}

func (b *Bridge) typecheck(ctx context.Context, opts *project.CompileOptions) ([]diag.Diagnostic, error) {
	if _, err := b.call(ctx, wire.OpSetOptions, project.CompileArg{Options: opts}); err != nil {
		return nil, err
	}
	raw, err := b.call(ctx, wire.OpAllDiags, struct{}{})
	if err != nil {
		return nil, err
	}
	var res project.DiagnosticsResult
	if err := wire.Decode(b.ch.Codec(), raw, &res); err != nil {
		return nil, fmt.Errorf("decode diagnostics: %w", err)
	}
	b.reduce(ctx, opts, res.Diagnostics)
	return res.Diagnostics, nil
}

// deliverArtifact hands "<target>.hex" to the sink when the worker produced it.
func (b *Bridge) deliverArtifact(opts *project.CompileOptions, outfiles map[string]string) {
	if b.sink == nil || opts == nil {
		return
	}
	content, ok := outfiles[opts.ArtifactName()]
	if !ok {
		return
	}
	filename := ArtifactFilename(opts.Target, b.ws.Name())
	if err := b.sink.DownloadText(content, filename, ArtifactMimeType(opts.Target)); err != nil {
		b.logger.Warn("artifact download failed", zap.String("file", filename), zap.Error(err))
	}
}

// reduce resolves diagnostic offsets against the snapshot in opts for files
// the editor model does not hold.
func (b *Bridge) reduce(ctx context.Context, opts *project.CompileOptions, diags []diag.Diagnostic) diagfmt.Summary {
	_, span := trace.StartSpan(ctx, trace.ScopeRequest, "reduce")
	r := b.reducer
	if opts != nil {
		r.Sources = opts.FileSystem
	}
	b.mu.Lock()
	b.sources = r.Sources
	b.mu.Unlock()
	sum := r.Apply(b.ws, diags)
	span.Attr("total", fmt.Sprint(sum.Total))
	span.End("")
	if sum.Attributed < sum.Total {
		b.logger.Debug("unattributed diagnostics", zap.Int("count", sum.Total-sum.Attributed))
	}
	return sum
}
