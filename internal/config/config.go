package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultPort               = 5000
	DefaultTargetEndpoint     = "https://api.openai.com/v1"
	DefaultMaxTokens          = 16384
	DefaultRefreshBufferMins  = 5
	proxyAccessTokenPrefix    = "cc-launcher-"
	proxyAccessTokenHexLength = 64
)

// ModelRule is one source=target mapping entry. Rules keep their configured
// order; partial matching takes the first hit.
type ModelRule struct {
	Source string
	Target string
}

// Config holds the process configuration, loaded from environment variables.
type Config struct {
	Port             int
	ProxyAccessToken string

	TargetEndpoint     string
	TargetAPIKey       string
	UsePlaceholderMode bool

	ModelMapping     []ModelRule
	DefaultMaxTokens int

	OAuthTokenEndpoint string
	OAuthClientID      string
	OAuthClientSecret  string
	OAuthScope         string
	OAuthRefreshBuffer time.Duration

	DevMode         bool
	SkipSSLVerify   bool
	AutoOpenBrowser bool
	MetricsEnabled  bool
}

// Load reads configuration from the environment. A missing proxy access
// token is generated so the proxy is never reachable without a key.
func Load() *Config {
	cfg := &Config{
		Port:               envInt("PROXY_PORT", DefaultPort),
		ProxyAccessToken:   os.Getenv("PROXY_ACCESS_TOKEN"),
		TargetEndpoint:     envString("TARGET_ENDPOINT", DefaultTargetEndpoint),
		TargetAPIKey:       os.Getenv("TARGET_API_KEY"),
		UsePlaceholderMode: envBool("USE_PLACEHOLDER_MODE", false),
		ModelMapping:       ParseModelMapping(os.Getenv("MODEL_MAPPING")),
		DefaultMaxTokens:   envInt("DEFAULT_MAX_TOKENS", DefaultMaxTokens),
		OAuthTokenEndpoint: os.Getenv("OAUTH_TOKEN_ENDPOINT"),
		OAuthClientID:      os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:  os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthScope:         os.Getenv("OAUTH_SCOPE"),
		OAuthRefreshBuffer: time.Duration(envInt("OAUTH_REFRESH_BUFFER_MINUTES", DefaultRefreshBufferMins)) * time.Minute,
		DevMode:            envBool("DEV_MODE", false),
		SkipSSLVerify:      envBool("SKIP_SSL_VERIFY", false),
		AutoOpenBrowser:    envBool("AUTO_OPEN_BROWSER", true),
		MetricsEnabled:     envBool("METRICS_ENABLED", false),
	}

	if cfg.TargetAPIKey == "" {
		cfg.TargetAPIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.ProxyAccessToken == "" {
		cfg.ProxyAccessToken = GenerateAccessToken()
		logrus.Info("PROXY_ACCESS_TOKEN not set, generated a new access token")
	}

	return cfg
}

// GenerateAccessToken returns a fresh client-facing access token.
func GenerateAccessToken() string {
	buf := make([]byte, proxyAccessTokenHexLength/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back loudly.
		panic(fmt.Sprintf("config: cannot generate access token: %v", err))
	}
	return proxyAccessTokenPrefix + hex.EncodeToString(buf)
}

// ParseModelMapping parses "source=target,source2=target2" preserving order.
func ParseModelMapping(raw string) []ModelRule {
	var rules []ModelRule
	for _, pair := range strings.Split(raw, ",") {
		source, target, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		source = strings.TrimSpace(source)
		target = strings.TrimSpace(target)
		if source == "" || target == "" {
			continue
		}
		rules = append(rules, ModelRule{Source: source, Target: target})
	}
	return rules
}

// MapModel resolves a client-supplied model name to the upstream model name.
//
// Resolution order: exact rule, normalized substring match in either
// direction (dots and dashes are equivalent, so "4.5" matches "4-5"), then a
// family fallback for haiku/opus/sonnet so dated names like
// "claude-sonnet-4-5-20250929" still land on an operator rule. Unmatched
// names pass through unchanged.
func (c *Config) MapModel(model string) string {
	for _, rule := range c.ModelMapping {
		if rule.Source == model {
			logrus.Debugf("model mapping (exact): %s -> %s", model, rule.Target)
			return rule.Target
		}
	}

	normalized := normalizeModel(model)
	for _, rule := range c.ModelMapping {
		source := normalizeModel(rule.Source)
		if strings.Contains(normalized, source) || strings.Contains(source, normalized) {
			logrus.Debugf("model mapping (partial): %s -> %s", model, rule.Target)
			return rule.Target
		}
	}

	lower := strings.ToLower(model)
	for _, family := range []string{"haiku", "opus", "sonnet"} {
		if !strings.Contains(lower, family) {
			continue
		}
		for _, rule := range c.ModelMapping {
			if strings.Contains(strings.ToLower(rule.Source), family) {
				logrus.Debugf("model mapping (family %s): %s -> %s", family, model, rule.Target)
				return rule.Target
			}
		}
	}

	logrus.Warnf("no model mapping for %q, passing through unchanged", model)
	return model
}

// IsOAuthConfigured reports whether the client-credentials grant can engage.
func (c *Config) IsOAuthConfigured() bool {
	return c.OAuthTokenEndpoint != "" && c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// IsAPIKeyConfigured reports whether a static upstream key is available.
func (c *Config) IsAPIKeyConfigured() bool {
	return c.TargetAPIKey != ""
}

// View returns the sanitized configuration exposed by the dashboard API.
// Secrets never appear here.
func (c *Config) View() map[string]any {
	mapping := make(map[string]string, len(c.ModelMapping))
	for _, rule := range c.ModelMapping {
		mapping[rule.Source] = rule.Target
	}
	return map[string]any{
		"port":                 c.Port,
		"target_endpoint":      c.TargetEndpoint,
		"use_placeholder_mode": c.UsePlaceholderMode,
		"model_mapping":        mapping,
		"default_max_tokens":   c.DefaultMaxTokens,
		"oauth_configured":     c.IsOAuthConfigured(),
		"api_key_configured":   c.IsAPIKeyConfigured(),
		"dev_mode":             c.DevMode,
		"skip_ssl_verify":      c.SkipSSLVerify,
		"metrics_enabled":      c.MetricsEnabled,
	}
}

func normalizeModel(model string) string {
	return strings.ReplaceAll(strings.ToLower(model), ".", "-")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}
