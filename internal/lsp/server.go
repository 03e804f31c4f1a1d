package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"sift/internal/engine"
	"sift/internal/logging"
	"sift/internal/rules"
	"sift/internal/scan"
	"sift/internal/version"
)

// Server speaks the language server protocol over a single stream pair and
// publishes rule diagnostics for open documents. Documents are re-scanned on
// every full-content change; the protocol is restricted to full sync.
type Server struct {
	dispatcher *scan.Dispatcher
	parser     *engine.Parser
	logger     *logging.Logger

	in      *bufio.Reader
	out     io.Writer
	writeMu sync.Mutex

	shutdown bool
}

// NewServer creates a server reading requests from in and writing to out.
func NewServer(dispatcher *scan.Dispatcher, in io.Reader, out io.Writer, logger *logging.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		parser:     engine.NewParser(),
		logger:     logger,
		in:         bufio.NewReader(in),
		out:        out,
	}
}

// Run processes messages until exit, EOF, or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := readMessage(s.in)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			s.logger.Warn("Dropping malformed message", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		exit, err := s.handle(ctx, msg)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}
	}
}

func (s *Server) handle(ctx context.Context, msg *Message) (exit bool, err error) {
	switch msg.Method {
	case "initialize":
		return false, s.respond(msg.ID, initializeResult{
			Capabilities: serverCapabilities{TextDocumentSync: 1}, // full sync
			ServerInfo:   serverInfo{Name: "sift", Version: version.Version},
		})
	case "initialized":
		return false, nil
	case "shutdown":
		s.shutdown = true
		return false, s.respond(msg.ID, nil)
	case "exit":
		return true, nil
	case "textDocument/didOpen":
		var params didOpenParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return false, s.respondError(msg.ID, CodeInvalidParams, err.Error())
		}
		return false, s.publish(ctx, params.TextDocument.URI, []byte(params.TextDocument.Text))
	case "textDocument/didChange":
		var params didChangeParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return false, s.respondError(msg.ID, CodeInvalidParams, err.Error())
		}
		if len(params.ContentChanges) == 0 {
			return false, nil
		}
		// Full sync: the last change carries the whole document.
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		return false, s.publish(ctx, params.TextDocument.URI, []byte(text))
	case "textDocument/didSave":
		var params didSaveParams
		if err := json.Unmarshal(msg.Params, &params); err != nil || params.Text == "" {
			// Without the saved text the didChange diagnostics stay current.
			return false, nil
		}
		return false, s.publish(ctx, params.TextDocument.URI, []byte(params.Text))
	case "textDocument/didClose":
		var params didCloseParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return false, nil
		}
		// Clear diagnostics for closed documents.
		return false, s.notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []lspDiagnostic{},
		})
	default:
		if msg.ID != nil {
			return false, s.respondError(msg.ID, CodeMethodNotFound, "unsupported method: "+msg.Method)
		}
		return false, nil
	}
}

// publish scans a document and pushes its diagnostics to the client.
func (s *Server) publish(ctx context.Context, uri string, source []byte) error {
	result := s.dispatcher.Source(ctx, s.parser, uriToPath(uri), source)

	diags := make([]lspDiagnostic, 0, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		diags = append(diags, lspDiagnostic{
			Range: lspRange{
				Start: lspPosition{Line: d.Start.Line, Character: d.Start.Column},
				End:   lspPosition{Line: d.End.Line, Character: d.End.Column},
			},
			Severity: lspSeverity(d.Severity),
			Code:     d.RuleID,
			Source:   "sift",
			Message:  d.Message,
		})
	}

	return s.notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

func (s *Server) respond(id *int, result interface{}) error {
	return s.write(&Message{Jsonrpc: "2.0", ID: id, Result: result})
}

func (s *Server) respondError(id *int, code int, message string) error {
	if id == nil {
		return nil
	}
	return s.write(&Message{Jsonrpc: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}

func (s *Server) notify(method string, params interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return s.write(&Message{Jsonrpc: "2.0", Method: method, Params: raw})
}

func (s *Server) write(msg *Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeMessage(s.out, msg)
}

// lspSeverity maps rule severities onto the protocol's 1..4 scale.
func lspSeverity(s rules.Severity) int {
	switch s {
	case rules.Error:
		return 1
	case rules.Warning:
		return 2
	case rules.Info:
		return 3
	default:
		return 4
	}
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
