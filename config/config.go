package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// StoreConfig selects the content store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Seed   string `mapstructure:"seed"`
}

// CacheConfig controls the shared placeholder cache.
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	TTLSec     int    `mapstructure:"ttlSec"`
	CleanupSec int    `mapstructure:"cleanupSec"`
}

// PlaceholderConfig tunes a slot, optionally only on one layout.
type PlaceholderConfig struct {
	Slot         string         `mapstructure:"slot"`
	Template     string         `mapstructure:"template"`
	Plugins      []string       `mapstructure:"plugins"`
	ExtraContext map[string]any `mapstructure:"extraContext"`
}

// EditorConfig is an account allowed to open edit sessions.
type EditorConfig struct {
	Name        string   `mapstructure:"name"`
	Token       string   `mapstructure:"token"`
	Staff       bool     `mapstructure:"staff"`
	Permissions []string `mapstructure:"permissions"`
}

// WebhookConfig guards the maintenance endpoints.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

// Config encapsulates runtime and build-time options.
type Config struct {
	Live                    bool                `mapstructure:"live"`
	Listen                  string              `mapstructure:"listen"`
	LogLevel                string              `mapstructure:"logLevel"`
	SiteID                  int64               `mapstructure:"siteId"`
	SiteName                string              `mapstructure:"siteName"`
	BaseURL                 string              `mapstructure:"baseUrl"`
	DefaultLanguage         string              `mapstructure:"defaultLanguage"`
	Languages               []string            `mapstructure:"languages"`
	FallbackLanguages       []string            `mapstructure:"fallbackLanguages"`
	TemplateDir             string              `mapstructure:"templateDir"`
	OutputDir               string              `mapstructure:"outputDir"`
	Minify                  bool                `mapstructure:"minify"`
	Store                   StoreConfig         `mapstructure:"store"`
	Cache                   CacheConfig         `mapstructure:"cache"`
	Placeholders            []PlaceholderConfig `mapstructure:"placeholders"`
	StaticPlaceholders      []string            `mapstructure:"staticPlaceholders"`
	PluginProcessors        []string            `mapstructure:"pluginProcessors"`
	PluginContextProcessors []string            `mapstructure:"pluginContextProcessors"`
	Editors                 []EditorConfig      `mapstructure:"editors"`
	LegacyToolbar           bool                `mapstructure:"legacyToolbar"`
	Webhook                 WebhookConfig       `mapstructure:"webhook"`
	EnableTLS               bool                `mapstructure:"enableTLS"`
	TLSCert                 string              `mapstructure:"tlsCert"`
	TLSKey                  string              `mapstructure:"tlsKey"`
	TrustedProxies          []string            `mapstructure:"trustedProxies"`

	trustedProxyPrefixes []netip.Prefix
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("logLevel", "info")
	v.SetDefault("siteId", 1)
	v.SetDefault("siteName", "CMS")
	v.SetDefault("defaultLanguage", "en")
	v.SetDefault("templateDir", "./template")
	v.SetDefault("outputDir", "./dist")
	v.SetDefault("minify", true)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttlSec", 600)
	v.SetDefault("cache.cleanupSec", 1800)
}

// Load reads configuration from path (JSON or YAML, by extension), lets CMS_
// environment variables override it and applies defaults. An empty path uses
// defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	c.SiteName = strings.TrimSpace(c.SiteName)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Webhook.Secret = strings.TrimSpace(c.Webhook.Secret)

	def, err := canonicalLanguage(c.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("defaultLanguage: %w", err)
	}
	c.DefaultLanguage = def

	if c.Languages, err = canonicalLanguages(c.Languages); err != nil {
		return fmt.Errorf("languages: %w", err)
	}
	found := false
	for _, lang := range c.Languages {
		found = found || lang == def
	}
	if !found {
		c.Languages = append([]string{def}, c.Languages...)
	}
	if c.FallbackLanguages, err = canonicalLanguages(c.FallbackLanguages); err != nil {
		return fmt.Errorf("fallbackLanguages: %w", err)
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 600
	}
	if c.Cache.CleanupSec <= 0 {
		c.Cache.CleanupSec = 1800
	}
	return c.compileTrustedProxies()
}

func canonicalLanguage(raw string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", raw, err)
	}
	return tag.String(), nil
}

func canonicalLanguages(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		lang, err := canonicalLanguage(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		out = append(out, lang)
	}
	return out, nil
}

func (c *Config) validate() error {
	if c.EnableTLS && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("tls enabled but certificates missing")
	}
	switch c.Store.Driver {
	case "memory":
		if c.Store.Seed == "" {
			return fmt.Errorf("store.seed required for the memory store")
		}
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "badger":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Webhook.Enabled {
		if n := len(c.Webhook.Secret); n < 8 || n > 128 {
			return fmt.Errorf("webhook secret must be between 8 and 128 characters")
		}
	}

	tokens := make(map[string]string, len(c.Editors))
	var errs []error
	for i, editor := range c.Editors {
		if strings.TrimSpace(editor.Name) == "" {
			errs = append(errs, fmt.Errorf("editor %d: name required", i))
		}
		if len(editor.Token) < 8 {
			errs = append(errs, fmt.Errorf("editor %q: token must be at least 8 characters", editor.Name))
			continue
		}
		if other, dup := tokens[editor.Token]; dup {
			errs = append(errs, fmt.Errorf("editor %q: token already used by %q", editor.Name, other))
		}
		tokens[editor.Token] = editor.Name
	}
	for i, ph := range c.Placeholders {
		if strings.TrimSpace(ph.Slot) == "" {
			errs = append(errs, fmt.Errorf("placeholders[%d]: slot required", i))
		}
	}
	return errors.Join(errs...)
}

// CacheTTL is the lifetime of cached placeholder content.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

func (c *Config) CacheCleanup() time.Duration {
	return time.Duration(c.Cache.CleanupSec) * time.Second
}

// ExtraContextFor merges the configured extra context of slot. Entries bound
// to template win over slot-wide ones.
func (c *Config) ExtraContextFor(slot, template string) map[string]any {
	out := make(map[string]any)
	for _, pass := range []bool{false, true} {
		for _, ph := range c.Placeholders {
			if !strings.EqualFold(ph.Slot, slot) {
				continue
			}
			bound := ph.Template != ""
			if bound != pass || (bound && ph.Template != template) {
				continue
			}
			for k, v := range ph.ExtraContext {
				out[k] = v
			}
		}
	}
	return out
}

func (c *Config) compileTrustedProxies() error {
	c.trustedProxyPrefixes = c.trustedProxyPrefixes[:0]
	for _, entry := range c.TrustedProxies {
		token := strings.TrimSpace(entry)
		if token == "" {
			continue
		}
		if strings.Contains(token, "/") {
			prefix, err := netip.ParsePrefix(token)
			if err != nil {
				return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			c.trustedProxyPrefixes = append(c.trustedProxyPrefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(token)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		c.trustedProxyPrefixes = append(c.trustedProxyPrefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return nil
}

// ClientAddr returns the address of the client behind r. X-Forwarded-For is
// honoured only when the direct peer is a trusted proxy.
func (c *Config) ClientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(strings.TrimSpace(host))
	if err != nil {
		return host
	}
	if !c.trustedProxy(peer) {
		return peer.String()
	}
	client := peer
	forwarded := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(forwarded) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(forwarded[i]))
		if err != nil {
			break
		}
		client = addr
		if !c.trustedProxy(addr) {
			break
		}
	}
	return client.String()
}

func (c *Config) trustedProxy(addr netip.Addr) bool {
	for _, prefix := range c.trustedProxyPrefixes {
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}
