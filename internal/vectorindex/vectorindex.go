// Package vectorindex wraps an optional, disabled-by-default Weaviate
// client that mirrors newly aggregated path summaries into an ancillary
// vector index. It is never the system of record — the relational store
// always is — and every exported method is a silent no-op when the index
// isn't configured, so callers never need to branch on whether it's on.
package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/antigravity-dev/deepresearch-mcp/internal/config"
)

const className = "PathSummary"

// Index mirrors path summaries into Weaviate for ancillary semantic
// lookup. A nil *weaviate.Client (the disabled case) makes every method a
// no-op.
type Index struct {
	client *weaviate.Client
}

// New builds an Index from cfg. When cfg.Enabled is false, the returned
// Index wraps no client and every method is a no-op — callers don't need
// to check cfg themselves before using it.
func New(cfg config.Vector) (*Index, error) {
	if !cfg.Enabled {
		return &Index{}, nil
	}

	clientConf := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		clientConf.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(clientConf)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: new client: %w", err)
	}
	return &Index{client: client}, nil
}

// EnsureSchema creates the PathSummary class if it doesn't already exist.
// A no-op when the index is disabled.
func (idx *Index) EnsureSchema(ctx context.Context) error {
	if idx.client == nil {
		return nil
	}

	if _, err := idx.client.Schema().ClassGetter().WithClassName(className).Do(ctx); err == nil {
		return nil
	}

	class := &models.Class{
		Class:      className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "session_id", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "path_id", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "content", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "mirrored_at", DataType: []string{"number"}},
		},
	}
	if err := idx.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("vectorindex: create schema: %w", err)
	}
	return nil
}

// MirrorPath inserts one aggregated path's content as a PathSummary
// object. A no-op when the index is disabled.
func (idx *Index) MirrorPath(ctx context.Context, sessionID, pathID, content string) error {
	if idx.client == nil {
		return nil
	}

	props := map[string]any{
		"session_id":  sessionID,
		"path_id":     pathID,
		"content":     content,
		"mirrored_at": time.Now().UnixMilli(),
	}
	_, err := idx.client.Data().Creator().
		WithClassName(className).
		WithProperties(props).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("vectorindex: mirror path %s: %w", pathID, err)
	}
	return nil
}

// Enabled reports whether this Index is backed by a live client.
func (idx *Index) Enabled() bool {
	return idx.client != nil
}
