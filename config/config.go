// Package config resolves request settings from three layers: a per-request
// model override, per-API defaults, and global defaults. The first layer
// that defines a value wins. Named models and defaults come from an optional
// TOML file; the plugin's runtime settings arrive separately via env JSON.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"codetab/logger"
	"codetab/types"
)

// Built-in bottom layer, used when neither a model entry nor an API section
// defines a value.
var builtins = map[types.APIKind]Settings{
	types.APIKindAnthropic: {
		URL:       "https://api.anthropic.com/v1/messages",
		Model:     "claude-sonnet-4-20250514",
		APIKeyEnv: "ANTHROPIC_API_KEY",
	},
	types.APIKindOpenAI: {
		URL:       "https://api.openai.com/v1/chat/completions",
		Model:     "gpt-4o-mini",
		APIKeyEnv: "OPENAI_API_KEY",
	},
}

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.2
)

// Settings is one layer of overrides. Pointer fields distinguish "unset"
// from a deliberate zero.
type Settings struct {
	URL         string   `toml:"url"`
	Model       string   `toml:"model"`
	APIKeyEnv   string   `toml:"api_key_env"`
	MaxTokens   *int     `toml:"max_tokens"`
	Temperature *float64 `toml:"temperature"`
	TimeoutMs   *int     `toml:"timeout_ms"`
}

// ModelDef is a named model entry, e.g. [model.fast] api = "openai".
type ModelDef struct {
	API string `toml:"api"`
	Settings
}

// Prompts holds user overrides for the built-in prompt templates.
type Prompts struct {
	EditSystem   string `toml:"edit_system"`
	EditUser     string `toml:"edit_user"`
	AppendSystem string `toml:"append_system"`
	AppendUser   string `toml:"append_user"`
	QuerySystem  string `toml:"query_system"`
	QueryUser    string `toml:"query_user"`
}

// FileConfig is the shape of codetab.toml.
type FileConfig struct {
	Default Settings            `toml:"default"`
	APIs    map[string]Settings `toml:"api"`
	Models  map[string]ModelDef `toml:"model"`
	Prompts Prompts             `toml:"prompts"`
}

// DefaultPath returns the user config location, honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codetab", "codetab.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "codetab", "codetab.toml")
}

// Load reads the TOML file at path. A missing file is not an error; it just
// means every layer above the built-ins is empty.
func Load(path string) (*FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return &fc, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return &fc, nil
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	logger.Info("loaded config from %s (%d model(s))", path, len(fc.Models))
	return &fc, nil
}

// Resolver binds the file config to the plugin's runtime defaults.
type Resolver struct {
	file         *FileConfig
	defaultAPI   types.APIKind
	defaultModel string
	getenv       func(string) string
}

// NewResolver builds a resolver. defaultAPI and defaultModel come from the
// plugin's runtime config; getenv is injectable for tests.
func NewResolver(file *FileConfig, defaultAPI types.APIKind, defaultModel string, getenv func(string) string) *Resolver {
	if file == nil {
		file = &FileConfig{}
	}
	if defaultAPI == "" {
		defaultAPI = types.APIKindAnthropic
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{file: file, defaultAPI: defaultAPI, defaultModel: defaultModel, getenv: getenv}
}

// Resolve produces the full provider config for one request. modelOverride
// may name a [model.X] entry, give a literal wire model name, or be empty to
// use the runtime default.
func (r *Resolver) Resolve(modelOverride string) (*types.ProviderConfig, error) {
	name := modelOverride
	if name == "" {
		name = r.defaultModel
	}

	var model Settings
	kind := r.defaultAPI
	if def, ok := r.file.Models[name]; ok {
		model = def.Settings
		if def.API != "" {
			kind = types.APIKind(def.API)
		}
	} else if name != "" {
		// Not a named entry: treat it as a literal model identifier.
		model = Settings{Model: name}
	}

	builtin, ok := builtins[kind]
	if !ok {
		return nil, fmt.Errorf("unknown api kind %q", kind)
	}
	api := r.file.APIs[string(kind)]
	global := r.file.Default

	cfg := &types.ProviderConfig{
		Kind:        kind,
		URL:         resolveString(model.URL, api.URL, global.URL, builtin.URL),
		Model:       resolveString(model.Model, api.Model, global.Model, builtin.Model),
		MaxTokens:   resolveInt(model.MaxTokens, api.MaxTokens, global.MaxTokens, defaultMaxTokens),
		Temperature: resolveFloat(model.Temperature, api.Temperature, global.Temperature, defaultTemperature),
		TimeoutMs:   resolveInt(model.TimeoutMs, api.TimeoutMs, global.TimeoutMs, 0),
	}

	keyEnv := resolveString(model.APIKeyEnv, api.APIKeyEnv, global.APIKeyEnv, builtin.APIKeyEnv)
	cfg.APIKey = r.getenv(keyEnv)
	if cfg.APIKey == "" {
		// Local OpenAI-compatible servers run without keys; hosted APIs don't.
		if kind == types.APIKindAnthropic {
			return nil, fmt.Errorf("api key not set: export %s", keyEnv)
		}
		logger.Warn("no api key in %s, sending unauthenticated requests to %s", keyEnv, cfg.URL)
	}

	return cfg, nil
}

// Prompts exposes the template overrides from the file config.
func (r *Resolver) Prompts() Prompts {
	return r.file.Prompts
}

func resolveString(model, api, global, fallback string) string {
	for _, v := range []string{model, api, global} {
		if v != "" {
			return v
		}
	}
	return fallback
}

func resolveInt(model, api, global *int, fallback int) int {
	for _, v := range []*int{model, api, global} {
		if v != nil {
			return *v
		}
	}
	return fallback
}

func resolveFloat(model, api, global *float64, fallback float64) float64 {
	for _, v := range []*float64{model, api, global} {
		if v != nil {
			return *v
		}
	}
	return fallback
}
