package config

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "cms.yaml", `
store:
  seed: ./seed.yaml
languages: [de, en-us]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(1), cfg.SiteID)
	assert.Equal(t, "en", cfg.DefaultLanguage)
	assert.Equal(t, []string{"en", "de", "en-US"}, cfg.Languages)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 600, int(cfg.CacheTTL().Seconds()))
	assert.True(t, cfg.Minify)
}

func TestLoadJSONAndEnvironment(t *testing.T) {
	path := writeConfig(t, "cms.json", `{
  "siteId": 3,
  "store": {"driver": "sqlite", "path": "cms.db"},
  "cache": {"backend": "badger", "dir": "cache", "ttlSec": 30}
}`)
	t.Setenv("CMS_LISTEN", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, int64(3), cfg.SiteID)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "badger", cfg.Cache.Backend)
	assert.Equal(t, 30, cfg.Cache.TTLSec)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing seed":     "store: {driver: memory}\n",
		"sqlite path":      "store: {driver: sqlite}\n",
		"unknown driver":   "store: {driver: postgres, seed: s.yaml}\n",
		"unknown backend":  "store: {seed: s.yaml}\ncache: {backend: redis}\n",
		"bad language":     "store: {seed: s.yaml}\ndefaultLanguage: '!!'\n",
		"short secret":     "store: {seed: s.yaml}\nwebhook: {enabled: true, secret: abc}\n",
		"tls without cert": "store: {seed: s.yaml}\nenableTLS: true\n",
		"duplicate token": `store: {seed: s.yaml}
editors:
  - {name: a, token: secret-token}
  - {name: b, token: secret-token}
`,
		"bad proxy": "store: {seed: s.yaml}\ntrustedProxies: [not-an-ip]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "cms.yaml", body))
			require.Error(t, err)
		})
	}
}

func TestExtraContextFor(t *testing.T) {
	cfg := &Config{Placeholders: []PlaceholderConfig{
		{Slot: "content", Template: "wide.html", ExtraContext: map[string]any{"width": 960}},
		{Slot: "content", ExtraContext: map[string]any{"width": 640, "tone": "plain"}},
		{Slot: "sidebar", ExtraContext: map[string]any{"width": 200}},
	}}

	assert.Equal(t, map[string]any{"width": 960, "tone": "plain"}, cfg.ExtraContextFor("content", "wide.html"))
	assert.Equal(t, map[string]any{"width": 640, "tone": "plain"}, cfg.ExtraContextFor("content", "default.html"))
	assert.Empty(t, cfg.ExtraContextFor("footer", "default.html"))
}

func TestClientAddr(t *testing.T) {
	cfg := &Config{TrustedProxies: []string{"10.0.0.0/8"}}
	require.NoError(t, cfg.compileTrustedProxies())

	direct := httptest.NewRequest("GET", "/", nil)
	direct.RemoteAddr = "192.0.2.1:1234"
	direct.Header.Set("X-Forwarded-For", "198.51.100.7")
	assert.Equal(t, "192.0.2.1", cfg.ClientAddr(direct))

	proxied := httptest.NewRequest("GET", "/", nil)
	proxied.RemoteAddr = "10.1.2.3:1234"
	proxied.Header.Set("X-Forwarded-For", "198.51.100.7, 10.1.2.4")
	assert.Equal(t, "198.51.100.7", cfg.ClientAddr(proxied))
}
