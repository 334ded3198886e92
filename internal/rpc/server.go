package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/antigravity-dev/deepresearch-mcp/internal/apperr"
)

// Server reads JSON-RPC requests one line at a time from r and writes
// responses one line at a time to w, dispatching tools/list and
// tools/call against its Registry. A recover() at the dispatch boundary
// converts any handler panic into an E102 ProcessingError rather than
// crashing the process.
type Server struct {
	registry *Registry
	logger   *slog.Logger
}

// NewServer builds a Server bound to registry.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	return &Server{registry: registry, logger: logger}
}

// Serve blocks, reading request lines from r and writing response lines
// to w, until r is exhausted (EOF) or a read error occurs.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.send(w, Response{JSONRPC: "2.0", Error: &ErrorObject{Code: CodeParseError, Message: "parse error"}})
			continue
		}

		s.dispatch(w, req)
	}
	return scanner.Err()
}

func (s *Server) dispatch(w io.Writer, req Request) {
	switch req.Method {
	case "tools/list":
		s.handleToolsList(w, req)
	case "tools/call":
		s.handleToolsCall(w, req)
	case "initialize":
		s.handleInitialize(w, req)
	case "notifications/initialized":
		// no response expected
	default:
		if req.ID != nil {
			s.send(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &ErrorObject{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}})
		}
	}
}

func (s *Server) handleInitialize(w io.Writer, req Request) {
	s.send(w, Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]string{"name": "deepresearch-mcp", "version": "1.0.0"},
	}})
}

func (s *Server) handleToolsList(w io.Writer, req Request) {
	var schemas []map[string]any
	for _, t := range s.registry.List() {
		schemas = append(schemas, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	s.send(w, Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"tools": schemas}})
}

func (s *Server) handleToolsCall(w io.Writer, req Request) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.send(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &ErrorObject{Code: CodeInvalidParams, Message: "invalid params"}})
		return
	}

	tool, ok := s.registry.Resolve(params.Name)
	if !ok {
		s.send(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &ErrorObject{Code: CodeMethodNotFound, Message: "unknown tool: " + params.Name}})
		return
	}

	result := s.invoke(tool, params.Arguments)
	s.send(w, Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// invoke calls the tool handler with a panic boundary: any recovered
// panic becomes an E102 ProcessingError folded into the isError envelope,
// exactly as apperr.FromPanic documents.
func (s *Server) invoke(tool *Tool, args json.RawMessage) (result CallResult) {
	defer func() {
		if r := recover(); r != nil {
			appErr := apperr.FromPanic(r)
			if s.logger != nil {
				s.logger.Error("rpc: tool handler panicked", "tool", tool.Name, "panic", r)
			}
			result = errorResult(appErr.Code, appErr.Message)
		}
	}()

	value, err := tool.Handle(args)
	if err != nil {
		if appErr, ok := apperr.As(err); ok {
			return errorResult(appErr.Code, appErr.Message)
		}
		internal := apperr.Internal(err)
		return errorResult(internal.Code, internal.Message)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return errorResult(apperr.CodeInternal, "failed to marshal tool result")
	}
	return textResult(string(payload))
}

func (s *Server) send(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("rpc: failed to marshal response", "error", err)
		}
		return
	}
	fmt.Fprintf(w, "%s\n", data)
}
