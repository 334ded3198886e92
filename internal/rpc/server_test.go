package rpc

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/antigravity-dev/deepresearch-mcp/internal/apperr"
)

func newTestServer(t *testing.T) (*Server, *Registry) {
	t.Helper()
	r := NewRegistry()
	r.Register(Tool{
		Name: "echo",
		Handle: func(raw json.RawMessage) (any, error) {
			var args struct {
				Text string `json:"text"`
			}
			if err := decodeAndValidate(raw, &args); err != nil {
				return nil, apperr.Validation(apperr.CodeValidationGeneric, err.Error())
			}
			return map[string]string{"echoed": args.Text}, nil
		},
	})
	r.Register(Tool{
		Name: "boom",
		Handle: func(raw json.RawMessage) (any, error) {
			panic("kaboom")
		},
	})
	r.Register(Tool{
		Name: "fail",
		Handle: func(raw json.RawMessage) (any, error) {
			return nil, apperr.Storage("fail: disk full", nil)
		},
	})
	return NewServer(r, nil), r
}

func serveOneLine(t *testing.T, s *Server, line string) Response {
	t.Helper()
	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(line+"\n"), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("decode response: %v, raw=%s", err, out.String())
	}
	return resp
}

func TestServeToolsListReturnsRegisteredTools(t *testing.T) {
	s, _ := newTestServer(t)
	resp := serveOneLine(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result shape: %v", resp.Result)
	}
	tools, ok := result["tools"].([]any)
	if !ok || len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %v", result["tools"])
	}
}

func TestServeToolsCallEchoesArguments(t *testing.T) {
	s, _ := newTestServer(t)
	req := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`
	resp := serveOneLine(t, s, req)
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result shape: %v", resp.Result)
	}
	content, ok := result["content"].([]any)
	if !ok || len(content) != 1 {
		t.Fatalf("expected one content item, got %v", result["content"])
	}
	item := content[0].(map[string]any)
	if !strings.Contains(item["text"].(string), "hi") {
		t.Fatalf("expected echoed text to contain 'hi', got %v", item["text"])
	}
}

func TestServeToolsCallUnknownToolReturnsMethodNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nonexistent","arguments":{}}}`
	resp := serveOneLine(t, s, req)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected -32601 for unknown tool, got %+v", resp.Error)
	}
}

func TestServeUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := `{"jsonrpc":"2.0","id":4,"method":"does/not/exist"}`
	resp := serveOneLine(t, s, req)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
}

func TestServeMalformedJSONReturnsParseError(t *testing.T) {
	s, _ := newTestServer(t)
	var out bytes.Buffer
	if err := s.Serve(strings.NewReader("{not json\n"), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("expected -32700, got %+v", resp.Error)
	}
}

func TestServeToolHandlerPanicBecomesIsErrorEnvelope(t *testing.T) {
	s, _ := newTestServer(t)
	req := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"boom","arguments":{}}}`
	resp := serveOneLine(t, s, req)
	if resp.Error != nil {
		t.Fatalf("expected a protocol-level success response wrapping isError, got %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if isErr, _ := result["isError"].(bool); !isErr {
		t.Fatalf("expected isError=true after panic recovery, got %v", result)
	}
}

func TestServeToolHandlerAppErrorBecomesIsErrorEnvelope(t *testing.T) {
	s, _ := newTestServer(t)
	req := `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"fail","arguments":{}}}`
	resp := serveOneLine(t, s, req)
	result := resp.Result.(map[string]any)
	if isErr, _ := result["isError"].(bool); !isErr {
		t.Fatalf("expected isError=true for a returned *apperr.Error, got %v", result)
	}
	content := result["content"].([]any)[0].(map[string]any)
	if !strings.Contains(content["text"].(string), apperr.CodeStorageGeneric) {
		t.Fatalf("expected error envelope to carry the E401 code, got %v", content["text"])
	}
}
