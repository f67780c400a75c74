package templatex

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsPluginTemplates(t *testing.T) {
	dir := writeTemplates(t, map[string]string{
		"default.html":      `layout`,
		"plugins/card.html": `v1`,
	})
	engine, err := Load(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Watch(ctx, slog.New(slog.DiscardHandler)) }()

	card := filepath.Join(dir, "plugins", "card.html")
	assert.Eventually(t, func() bool {
		// Rewritten on every poll so a write racing the watcher setup is retried.
		if err := os.WriteFile(card, []byte(`v2`), 0o644); err != nil {
			return false
		}
		tpl, err := engine.Resolve("plugins/card.html")
		if err != nil {
			return false
		}
		out, err := engine.Execute(tpl, nil)
		return err == nil && out == "v2"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
