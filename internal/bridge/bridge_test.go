package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kside/internal/compiler"
	"kside/internal/diag"
	"kside/internal/diagfmt"
	"kside/internal/project"
	"kside/internal/wire"
	"kside/internal/worker"
	"kside/internal/workspace"
)

func microbitOptions() *project.CompileOptions {
	return &project.CompileOptions{
		Target:      "microbit",
		SourceFiles: []string{"main.ts"},
		FileSystem:  map[string]string{"main.ts": "let x = 1\n"},
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	b, _ := newTestBridge(t, workspace.NewEditor("blink"))
	if _, err := b.Compile(microbitOptions()).Wait(testContext(t)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Compile before Initialize: %v", err)
	}
	if err := b.Reset(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Reset before Initialize: %v", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)
	if err := b.Initialize().Err(testContext(t)); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestInitializeRetryAfterStartFailure(t *testing.T) {
	f, editor := newFakeWorker(t)
	ch := &failFirstStart{Channel: worker.NewConn(editor, wire.JSON)}
	b := New(ch, workspace.NewEditor("blink"))
	t.Cleanup(func() { _ = b.Close() })

	err := b.Initialize().Err(testContext(t))
	if err == nil || errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("first Initialize = %v, want start failure", err)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d after failed start", b.Pending())
	}
	initialize(t, b, f)
	if err := b.Initialize().Err(testContext(t)); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("Initialize after success: %v", err)
	}
}

func TestCompileWaitsForReady(t *testing.T) {
	ed := workspace.NewEditor("blink")
	b, f := newTestBridge(t, ed)

	handshake := b.Initialize()
	fut := b.Compile(microbitOptions())

	f.expectNone(50 * time.Millisecond)
	select {
	case <-handshake.Done():
		t.Fatal("handshake settled before ready")
	default:
	}

	f.ready()
	req := f.next()
	if req.ID != "0" || req.Op != wire.OpCompile {
		t.Fatalf("unexpected first request %s %s", req.ID, req.Op)
	}
	var arg project.CompileArg
	if err := wire.Decode(wire.JSON, req.Arg, &arg); err != nil {
		t.Fatalf("decode arg: %v", err)
	}
	if arg.Options == nil || arg.Options.Target != "microbit" {
		t.Fatalf("unexpected options %+v", arg.Options)
	}

	f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{"binary.js": "// program\n"}})
	res, err := fut.Wait(testContext(t))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.OutFiles["binary.js"] != "// program\n" {
		t.Fatalf("unexpected outfiles %v", res.OutFiles)
	}
	if err := handshake.Err(testContext(t)); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	out := ed.Output().File(diagfmt.OutputFile)
	if out == nil || out.Content() != diagfmt.SuccessMessage {
		t.Fatalf("expected success summary, got %v", out)
	}
	if ed.Output().File("binary.js") == nil {
		t.Fatal("output package should hold binary.js")
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", b.Pending())
	}
}

func TestWorkerErrorLeavesLaneUsable(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)

	first := b.Compile(microbitOptions())
	second := b.Compile(microbitOptions())

	req := f.next()
	f.reply(req.ID, wire.ErrorResult{ErrorMessage: "missing options"})
	_, err := first.Wait(testContext(t))
	var werr *WorkerError
	if !errors.As(err, &werr) || werr.Message != "missing options" {
		t.Fatalf("expected worker error, got %v", err)
	}

	req = f.next()
	if req.ID != "1" {
		t.Fatalf("second request id = %q, want 1", req.ID)
	}
	f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{}})
	if _, err := second.Wait(testContext(t)); err != nil {
		t.Fatalf("second compile: %v", err)
	}
}

func TestMissingResult(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)

	fut := b.Compile(microbitOptions())
	req := f.next()
	f.reply(req.ID, nil)
	if _, err := fut.Wait(testContext(t)); !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestUnknownReplyIgnored(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)

	fut := b.Compile(microbitOptions())
	req := f.next()
	f.reply("42", project.CompileResult{OutFiles: map[string]string{"stray.js": ""}})
	f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{"binary.js": ""}})
	res, err := fut.Wait(testContext(t))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := res.OutFiles["stray.js"]; ok {
		t.Fatal("stray reply was delivered to the wrong request")
	}
}

func TestOperationsRunInRequestOrder(t *testing.T) {
	ed := workspace.NewEditor("blink")
	ed.Main().SetFile("main.ts", "let x = 1\nlet y = \n")
	b, f := newTestBridge(t, ed)
	initialize(t, b, f)

	compiled := b.Compile(microbitOptions())
	if err := b.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	checked := b.Typecheck(microbitOptions())

	want := []wire.Op{wire.OpCompile, wire.OpReset, wire.OpSetOptions, wire.OpAllDiags}
	d := diag.New(diag.CategoryError, diag.CodeExpected, "Expression expected.")
	d.File = "main.ts"
	d.Start = 18
	for i, op := range want {
		req := f.next()
		if req.Op != op {
			t.Fatalf("request %d: op = %s, want %s", i, req.Op, op)
		}
		switch op {
		case wire.OpCompile:
			f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{}})
		case wire.OpReset:
			// a failed reset must not block what follows
			f.reply(req.ID, wire.ErrorResult{ErrorMessage: "busy"})
		case wire.OpSetOptions:
			f.reply(req.ID, struct{}{})
		case wire.OpAllDiags:
			f.reply(req.ID, project.DiagnosticsResult{Diagnostics: []diag.Diagnostic{d}})
		}
	}

	if _, err := compiled.Wait(testContext(t)); err != nil {
		t.Fatalf("compile: %v", err)
	}
	diags, err := checked.Wait(testContext(t))
	if err != nil {
		t.Fatalf("typecheck: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	main := ed.LookupFile("this/main.ts")
	if got := len(main.Diagnostics()); got != 1 {
		t.Fatalf("main.ts has %d diagnostics, want 1", got)
	}
	out := ed.Output().File(diagfmt.OutputFile)
	if out == nil || !strings.Contains(out.Content(), "main.ts(2,9)") {
		t.Fatalf("unexpected summary %v", out)
	}
}

func TestTypecheckResolvesFilesOutsideEditor(t *testing.T) {
	ed := workspace.NewEditor("blink")
	ed.Main().SetFile("main.ts", "let x = 1\n")
	b, f := newTestBridge(t, ed)
	initialize(t, b, f)

	opts := microbitOptions()
	opts.FileSystem["yelm_modules/core/core.ts"] = "// ü\r\nlet = ("
	checked := b.Typecheck(opts)
	d := diag.New(diag.CategoryError, diag.CodeExpected, "')' expected.")
	d.File = "yelm_modules/core/core.ts"
	d.Start = 12

	f.reply(f.next().ID, struct{}{})
	f.reply(f.next().ID, project.DiagnosticsResult{Diagnostics: []diag.Diagnostic{d}})
	if _, err := checked.Wait(testContext(t)); err != nil {
		t.Fatalf("typecheck: %v", err)
	}

	want := "yelm_modules/core/core.ts(2,7): error TS1005: ')' expected.\n"
	if out := ed.Output().File(diagfmt.OutputFile); out == nil || out.Content() != want {
		t.Fatalf("summary = %v, want %q", out, want)
	}
	if got := b.Reducer().FormatLine(d, nil); got != want {
		t.Fatalf("Reducer().FormatLine = %q, want %q", got, want)
	}
}

func TestArtifactDownload(t *testing.T) {
	sink := &recordingSink{}
	b, f := newTestBridge(t, workspace.NewEditor("My Project!"), WithDownloadSink(sink))
	initialize(t, b, f)

	withHex := b.Compile(microbitOptions())
	withoutHex := b.Compile(microbitOptions())

	req := f.next()
	f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{"microbit.hex": ":00000001FF\n"}})
	if _, err := withHex.Wait(testContext(t)); err != nil {
		t.Fatalf("compile: %v", err)
	}
	req = f.next()
	f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{"binary.js": ""}})
	if _, err := withoutHex.Wait(testContext(t)); err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := sink.downloads()
	if len(got) != 1 {
		t.Fatalf("got %d downloads, want 1", len(got))
	}
	want := download{":00000001FF\n", "microbit-My-Project!.hex", "application/x-microbit-hex"}
	if got[0] != want {
		t.Fatalf("download = %+v, want %+v", got[0], want)
	}
}

func TestArtifactFilename(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"blink", "microbit-blink.hex"},
		{"My Project!", "microbit-My-Project!.hex"},
		{"a  b--c", "microbit-a-b--c.hex"},
		{"!!go", "microbit--go.hex"},
	}
	for _, tt := range tests {
		if got := ArtifactFilename("microbit", tt.name); got != tt.want {
			t.Fatalf("ArtifactFilename(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestManifestFailureNeverQueued(t *testing.T) {
	calls := 0
	provider := providerFunc(func(ctx context.Context) (*project.CompileOptions, error) {
		calls++
		if calls == 1 {
			return nil, &project.ManifestError{Path: "this/kind.toml", Err: project.ErrNoManifest}
		}
		return microbitOptions(), nil
	})
	b, f := newTestBridge(t, workspace.NewEditor("blink"), WithOptionsProvider(provider))
	initialize(t, b, f)

	_, err := b.CompileProject(testContext(t))
	var merr *project.ManifestError
	if !errors.As(err, &merr) || !errors.Is(err, project.ErrNoManifest) {
		t.Fatalf("expected manifest error, got %v", err)
	}
	f.expectNone(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := b.CompileProject(context.Background())
		done <- err
	}()
	req := f.next()
	if req.ID != "0" {
		t.Fatalf("first request id = %q, want 0", req.ID)
	}
	f.reply(req.ID, project.CompileResult{OutFiles: map[string]string{}})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("compile did not finish")
	}
}

func TestNoProvider(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)
	if _, err := b.TypecheckProject(testContext(t)); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestChannelCloseFailsPending(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)

	fut := b.Compile(microbitOptions())
	f.next()
	_ = f.tr.Close()
	if _, err := fut.Wait(testContext(t)); !errors.Is(err, worker.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := b.Compile(microbitOptions()).Wait(testContext(t)); !errors.Is(err, worker.ErrClosed) {
		t.Fatalf("compile after close: %v", err)
	}
}

func TestHandshakeFailsWhenChannelCloses(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	handshake := b.Initialize()
	_ = f.tr.Close()
	if err := handshake.Err(testContext(t)); !errors.Is(err, worker.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAbandonedWaitKeepsTurn(t *testing.T) {
	b, f := newTestBridge(t, workspace.NewEditor("blink"))
	initialize(t, b, f)

	ctx, cancel := context.WithCancel(context.Background())
	fut := b.Compile(microbitOptions())
	cancel()
	if _, err := fut.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled wait, got %v", err)
	}
	// the turn still runs and the next op queues behind it
	next := b.Compile(microbitOptions())
	req := f.next()
	f.reply(req.ID, project.CompileResult{})
	req = f.next()
	if req.ID != "1" {
		t.Fatalf("request id = %q, want 1", req.ID)
	}
	f.reply(req.ID, project.CompileResult{})
	if _, err := next.Wait(testContext(t)); err != nil {
		t.Fatalf("next compile: %v", err)
	}
}

const blinkManifest = `
[package]
name = "blink"
files = ["main.ts"]

[compile]
target = "microbit"
`

func TestCompilerServiceEndToEnd(t *testing.T) {
	for _, codec := range []wire.Codec{wire.JSON, wire.Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx := testContext(t)
			editorEnd, workerEnd := worker.Pipe()
			serveCtx, stop := context.WithCancel(context.Background())
			served := make(chan error, 1)
			go func() { served <- worker.Serve(serveCtx, workerEnd, codec, compiler.NewService()) }()

			ed := workspace.NewEditor("blink")
			ed.Main().SetFile(project.ManifestFile, blinkManifest)
			ed.Main().SetFile("main.ts", "let x = 1\n")
			sink := &recordingSink{}
			b := New(worker.NewConn(editorEnd, codec), ed,
				WithOptionsProvider(project.NewProvider(ed)),
				WithDownloadSink(sink),
			)
			defer func() {
				_ = b.Close()
				stop()
				<-served
			}()

			if err := b.Initialize().Err(ctx); err != nil {
				t.Fatalf("initialize: %v", err)
			}
			res, err := b.CompileProject(ctx)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if _, ok := res.OutFiles["microbit.hex"]; !ok {
				t.Fatalf("expected hex artifact, got %v", res.OutFiles)
			}
			if len(sink.downloads()) != 1 {
				t.Fatalf("expected one download, got %d", len(sink.downloads()))
			}

			ed.Main().SetFile("main.ts", "let s = \"abc\n")
			diags, err := b.TypecheckProject(ctx)
			if err != nil {
				t.Fatalf("typecheck: %v", err)
			}
			if len(diags) != 1 || diags[0].Code != diag.CodeUnterminatedString {
				t.Fatalf("unexpected diagnostics %+v", diags)
			}
			if got := len(ed.LookupFile("this/main.ts").Diagnostics()); got != 1 {
				t.Fatalf("main.ts has %d diagnostics, want 1", got)
			}
			if err := b.Reset(); err != nil {
				t.Fatalf("reset: %v", err)
			}
		})
	}
}
