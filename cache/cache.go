// Package cache holds rendered placeholder content shared across requests.
package cache

import (
	"context"
	"fmt"

	"github.com/iedon/cms-render-go/content"
)

// Key addresses one rendered placeholder variant.
type Key struct {
	Placeholder content.PlaceholderID
	Language    string
	SiteID      int64
}

func (k Key) String() string {
	return fmt.Sprintf("cms:placeholder:%d:%s:%d", k.SiteID, k.Language, k.Placeholder)
}

// Record is the cached output of a placeholder render together with the
// deferred assets its plugins registered while rendering.
type Record struct {
	Content string              `json:"content"`
	Assets  map[string][]string `json:"assets,omitempty"`
}

// Store is a shared key/value store for rendered placeholders. A missing
// entry is reported with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key Key) (Record, bool, error)
	Set(ctx context.Context, key Key, record Record) error
	Purge(ctx context.Context) error
}

func cloneRecord(r Record) Record {
	out := Record{Content: r.Content}
	if len(r.Assets) > 0 {
		out.Assets = make(map[string][]string, len(r.Assets))
		for ns, items := range r.Assets {
			out.Assets[ns] = append([]string(nil), items...)
		}
	}
	return out
}
