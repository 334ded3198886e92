package vectorindex

import (
	"context"
	"testing"

	"github.com/antigravity-dev/deepresearch-mcp/internal/config"
)

func TestNewDisabledReturnsNoOpIndex(t *testing.T) {
	idx, err := New(config.Vector{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Enabled() {
		t.Fatal("expected a disabled index to report Enabled()==false")
	}
}

func TestDisabledIndexMethodsAreNoOps(t *testing.T) {
	idx, err := New(config.Vector{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idx.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("expected EnsureSchema to be a no-op when disabled, got %v", err)
	}
	if err := idx.MirrorPath(context.Background(), "sess-1", "path-1", "content"); err != nil {
		t.Fatalf("expected MirrorPath to be a no-op when disabled, got %v", err)
	}
}
