// SPDX-License-Identifier: Apache-2.0

// Package devserver is a minimal LSP-like server over the textual IR
// format: opening an ".ir" file parses and validates it, reporting
// diagnostics the same way a real language server reports syntax
// errors, and a workspace/executeCommand request runs one named
// optimization pass and returns the rewritten IR text. Per
// SPEC_FULL.md's domain-stack wiring table this gives glsp/commonlog
// a genuine new home: inspecting and driving the optimizer over the
// protocol the teacher already used for its own surface language.
package devserver

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"turbine/internal/diag"
	"turbine/internal/ir"
	"turbine/internal/irtext"
	"turbine/internal/passrunner"
)

// RunPassCommand is the workspace/executeCommand name clients invoke
// to run a single named pass against an open document. Arguments are
// [uri string, passName string].
const RunPassCommand = "turbine.runPass"

// document holds one open file's text, its built module, and the
// context it was built against (so re-running a pass against the same
// module reuses the same interned types/constants).
type document struct {
	text string
	ctx  *ir.Context
	mod  *ir.Module
}

// Handler implements the glsp protocol.Handler callbacks over the IR
// text format.
type Handler struct {
	mu   sync.RWMutex
	docs map[string]*document
}

// NewHandler returns an empty Handler ready to be wired into a
// protocol.Handler and server.NewServer, mirroring the shape the
// teacher's own LSP handler constructor uses.
func NewHandler() *Handler {
	return &Handler{docs: make(map[string]*document)}
}

func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{RunPassCommand},
			},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error { return nil }

func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return h.refresh(ctx, params.TextDocument.URI, params.TextDocument.Text)
}

func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	full, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	return h.refresh(ctx, params.TextDocument.URI, full.Text)
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.docs, path)
	h.mu.Unlock()
	return nil
}

// refresh re-parses and rebuilds the document's module, publishing
// diagnostics for either a parse error or a validation failure.
func (h *Handler) refresh(ctx *glsp.Context, uri protocol.DocumentUri, text string) error {
	path, err := uriToPath(uri)
	if err != nil {
		return err
	}

	textMod, err := irtext.ParseString(path, text)
	if err != nil {
		publishDiagnostics(ctx, uri, []protocol.Diagnostic{{
			Range:    zeroRange(),
			Severity: severityPtr(protocol.DiagnosticSeverityError),
			Message:  err.Error(),
		}})
		return nil
	}

	irCtx := ir.NewContext()
	mod, err := irtext.Build(irCtx, textMod)
	if err != nil {
		publishDiagnostics(ctx, uri, []protocol.Diagnostic{{
			Range:    zeroRange(),
			Severity: severityPtr(protocol.DiagnosticSeverityError),
			Message:  err.Error(),
		}})
		return nil
	}

	var bag diag.Bag
	for _, fn := range mod.Functions() {
		ir.Validate(fn, &bag)
	}
	publishDiagnostics(ctx, uri, diagnosticsFromBag(&bag))

	h.mu.Lock()
	h.docs[path] = &document{text: text, ctx: irCtx, mod: mod}
	h.mu.Unlock()
	return nil
}

// ExecuteCommand runs RunPassCommand: [uri, passName] -> rewritten IR
// text for the whole module.
func (h *Handler) ExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if params.Command != RunPassCommand {
		return nil, fmt.Errorf("devserver: unknown command %q", params.Command)
	}
	if len(params.Arguments) != 2 {
		return nil, fmt.Errorf("devserver: %s expects [uri, passName]", RunPassCommand)
	}
	uri, ok1 := params.Arguments[0].(string)
	passName, ok2 := params.Arguments[1].(string)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("devserver: %s arguments must be strings", RunPassCommand)
	}

	path, err := uriToPath(protocol.DocumentUri(uri))
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	doc, ok := h.docs[path]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("devserver: %s is not open", path)
	}

	runner := passrunner.New(passrunner.Options{Strict: true, Only: []string{passName}})
	for _, fn := range doc.mod.Functions() {
		if fn.Extern() {
			continue
		}
		res := runner.Run(fn)
		if res.FatalBag != nil {
			return nil, fmt.Errorf("devserver: pass %q invalidated %q: %v", passName, fn.Name(), res.FatalBag.Entries())
		}
	}

	return irtext.Print(doc.mod), nil
}

func diagnosticsFromBag(bag *diag.Bag) []protocol.Diagnostic {
	var out []protocol.Diagnostic
	for _, d := range bag.Entries() {
		sev := protocol.DiagnosticSeverityWarning
		if d.Severity == diag.SeverityError {
			sev = protocol.DiagnosticSeverityError
		}
		where := d.Function
		if d.Block != "" {
			where += "." + d.Block
		}
		msg := d.Message
		if where != "" {
			msg = where + ": " + msg
		}
		out = append(out, protocol.Diagnostic{
			Range:    zeroRange(),
			Severity: severityPtr(sev),
			Message:  msg,
		})
	}
	return out
}

func zeroRange() protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: 0, Character: 0},
		End:   protocol.Position{Line: 0, Character: 0},
	}
}

func publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func uriToPath(rawURI protocol.DocumentUri) (string, error) {
	u, err := url.Parse(string(rawURI))
	if err != nil {
		return "", fmt.Errorf("devserver: invalid URI %s: %w", rawURI, err)
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool { return &b }
func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
func severityPtr(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity    { return &s }
