// Package config provides aicommit configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .aicommit/config.toml (relative to repo root)
//   - Global: XDG config dir, e.g. ~/.config/aicommit/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - AICOMMIT_MODEL, AICOMMIT_HOSTED_PREFIX, AICOMMIT_CANDIDATES, AICOMMIT_RECENT_COMMITS
//   - AICOMMIT_OLLAMA_BASE_URL, AICOMMIT_OPENAI_BASE_URL
//   - AICOMMIT_OPENAI_API_KEY, falling back to OPENAI_API_KEY and then OPEN_AI_KEY
//   - AICOMMIT_TIMEOUT (Go duration string or integer seconds), AICOMMIT_TEMPERATURE
//   - AICOMMIT_CONTEXT_LIMIT, AICOMMIT_WARN_THRESHOLD
//   - AICOMMIT_SELF_UPDATE (1/true/yes/on or 0/false/no/off), AICOMMIT_UPDATE_URL, AICOMMIT_VERSION_TOKEN
//   - AICOMMIT_STATE_DIR
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"aicommit/cli/internal/erruser"
)

// Config holds all aicommit configuration.
type Config struct {
	// Model selects the backend. Names starting with HostedPrefix go to the hosted API.
	Model         string `toml:"model"`
	HostedPrefix  string `toml:"hosted_prefix"`
	OllamaBaseURL string `toml:"ollama_base_url"`
	// OpenAIBaseURL is empty for the public endpoint.
	OpenAIBaseURL string `toml:"openai_base_url"`
	OpenAIAPIKey  string `toml:"openai_api_key"`
	// Candidates is how many messages are generated per batch.
	Candidates int `toml:"candidates"`
	// RecentCommits is a count or RecentCommitsSkip; see ParseRecentCommits.
	RecentCommits string        `toml:"recent_commits"`
	Timeout       time.Duration `toml:"timeout"`
	Temperature   float64       `toml:"temperature"`
	ContextLimit  int           `toml:"context_limit"`
	WarnThreshold float64       `toml:"warn_threshold"`
	SelfUpdate    bool          `toml:"self_update"`
	UpdateURL     string        `toml:"update_url"`
	VersionToken  string        `toml:"version_token"`
	// StateDir holds instructions.md; empty means <repo>/.aicommit.
	StateDir string `toml:"state_dir"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Model         *string
	Candidates    *int
	RecentCommits *string
	SelfUpdate    *bool
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.aicommit/config.toml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

// RecentCommitsSkip disables recent commit context.
const RecentCommitsSkip = "no"

// DefaultUpdateURL serves the release binary for this platform, as published
// by scripts/release.sh under release/aicommit-<goos>-<goarch>.
var DefaultUpdateURL = "https://raw.githubusercontent.com/wildespiva/aicommit/main/release/aicommit-" +
	runtime.GOOS + "-" + runtime.GOARCH

const (
	_defaultModel         = "qwen2.5-coder:1.5b"
	_defaultHostedPrefix  = "gpt"
	_defaultOllamaBaseURL = "http://localhost:11434"
	_defaultCandidates    = 5
	_defaultRecentCommits = "5"
	_defaultTimeout       = 5 * time.Minute
	_defaultTemperature   = 0.7
	_defaultContextLimit  = 32768
	_defaultWarnThreshold = 0.9
	_defaultVersionToken  = "version"
)

// errIntOverflow is returned when an int64 value does not fit in int.
var errIntOverflow = errors.New("value out of range for int")

func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Model:         _defaultModel,
		HostedPrefix:  _defaultHostedPrefix,
		OllamaBaseURL: _defaultOllamaBaseURL,
		Candidates:    _defaultCandidates,
		RecentCommits: _defaultRecentCommits,
		Timeout:       _defaultTimeout,
		Temperature:   _defaultTemperature,
		ContextLimit:  _defaultContextLimit,
		WarnThreshold: _defaultWarnThreshold,
		SelfUpdate:    true,
		UpdateURL:     DefaultUpdateURL,
		VersionToken:  _defaultVersionToken,
	}
}

// EffectiveStateDir returns the directory holding per-repo files such as
// instructions.md. If StateDir is set it is returned as-is; otherwise
// repoRoot/.aicommit.
func (c Config) EffectiveStateDir(repoRoot string) string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return filepath.Join(repoRoot, ".aicommit")
}

// ParseRecentCommits converts a recent-commits value into a count. The skip
// token ("no", case-insensitive) yields 0. Anything else must be a
// non-negative integer; failures are classified as erruser.ErrUserInput.
func ParseRecentCommits(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, RecentCommitsSkip) {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, erruser.Input("Invalid value for --recent-commits. Use a number or 'no'.", err)
	}
	if n < 0 {
		return 0, erruser.Input("Invalid value for --recent-commits. Use a number or 'no'.", nil)
	}
	return n, nil
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML or invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "aicommit", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		repoPath := filepath.Join(opts.RepoRoot, ".aicommit", "config.toml")
		if err := mergeFile(&cfg, repoPath); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return erruser.Input("Model name must not be empty.", nil)
	}
	if cfg.Candidates < 1 {
		return erruser.Input("Number of commit messages (--commits) must be at least 1.", nil)
	}
	if _, err := ParseRecentCommits(cfg.RecentCommits); err != nil {
		return err
	}
	return nil
}

// mergeFile reads path and merges into cfg. Only overwrites fields that are
// present in the file. Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file struct {
		Model         *string  `toml:"model"`
		HostedPrefix  *string  `toml:"hosted_prefix"`
		OllamaBaseURL *string  `toml:"ollama_base_url"`
		OpenAIBaseURL *string  `toml:"openai_base_url"`
		OpenAIAPIKey  *string  `toml:"openai_api_key"`
		Candidates    *int64   `toml:"candidates"`
		RecentCommits any      `toml:"recent_commits"`
		Timeout       *string  `toml:"timeout"`
		Temperature   *float64 `toml:"temperature"`
		ContextLimit  *int64   `toml:"context_limit"`
		WarnThreshold *float64 `toml:"warn_threshold"`
		SelfUpdate    *bool    `toml:"self_update"`
		UpdateURL     *string  `toml:"update_url"`
		VersionToken  *string  `toml:"version_token"`
		StateDir      *string  `toml:"state_dir"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New(fmt.Sprintf("Invalid configuration in %s.", path), err)
	}
	if file.Model != nil && *file.Model != "" {
		cfg.Model = *file.Model
	}
	if file.HostedPrefix != nil && *file.HostedPrefix != "" {
		cfg.HostedPrefix = *file.HostedPrefix
	}
	if file.OllamaBaseURL != nil && *file.OllamaBaseURL != "" {
		cfg.OllamaBaseURL = *file.OllamaBaseURL
	}
	if file.OpenAIBaseURL != nil {
		cfg.OpenAIBaseURL = *file.OpenAIBaseURL
	}
	if file.OpenAIAPIKey != nil && *file.OpenAIAPIKey != "" {
		cfg.OpenAIAPIKey = *file.OpenAIAPIKey
	}
	if file.Candidates != nil && *file.Candidates > 0 {
		v, err := int64ToInt(*file.Candidates)
		if err != nil {
			return erruser.New("Configuration candidates value out of range.", err)
		}
		cfg.Candidates = v
	}
	switch v := file.RecentCommits.(type) {
	case nil:
	case int64:
		if v < 0 {
			return erruser.New("Configuration recent_commits must be non-negative or \"no\".", nil)
		}
		cfg.RecentCommits = strconv.FormatInt(v, 10)
	case string:
		if _, err := ParseRecentCommits(v); err != nil {
			return erruser.New("Configuration recent_commits must be a number or \"no\".", err)
		}
		cfg.RecentCommits = v
	default:
		return erruser.New("Configuration recent_commits must be a number or \"no\".", nil)
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return erruser.New("Configuration timeout is invalid.", err)
		}
		cfg.Timeout = d
	}
	if file.Temperature != nil && *file.Temperature >= 0 && *file.Temperature <= 2 {
		cfg.Temperature = *file.Temperature
	}
	if file.ContextLimit != nil && *file.ContextLimit >= 0 {
		v, err := int64ToInt(*file.ContextLimit)
		if err != nil {
			return erruser.New("Configuration context_limit value out of range.", err)
		}
		cfg.ContextLimit = v
	}
	if file.WarnThreshold != nil && *file.WarnThreshold >= 0 {
		cfg.WarnThreshold = *file.WarnThreshold
	}
	if file.SelfUpdate != nil {
		cfg.SelfUpdate = *file.SelfUpdate
	}
	if file.UpdateURL != nil && *file.UpdateURL != "" {
		cfg.UpdateURL = *file.UpdateURL
	}
	if file.VersionToken != nil && *file.VersionToken != "" {
		cfg.VersionToken = *file.VersionToken
	}
	if file.StateDir != nil {
		cfg.StateDir = *file.StateDir
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "30s")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envModel         = "AICOMMIT_MODEL"
	envHostedPrefix  = "AICOMMIT_HOSTED_PREFIX"
	envOllamaBaseURL = "AICOMMIT_OLLAMA_BASE_URL"
	envOpenAIBaseURL = "AICOMMIT_OPENAI_BASE_URL"
	envOpenAIAPIKey  = "AICOMMIT_OPENAI_API_KEY"
	envCandidates    = "AICOMMIT_CANDIDATES"
	envRecentCommits = "AICOMMIT_RECENT_COMMITS"
	envTimeout       = "AICOMMIT_TIMEOUT"
	envTemperature   = "AICOMMIT_TEMPERATURE"
	envContextLimit  = "AICOMMIT_CONTEXT_LIMIT"
	envWarnThreshold = "AICOMMIT_WARN_THRESHOLD"
	envSelfUpdate    = "AICOMMIT_SELF_UPDATE"
	envUpdateURL     = "AICOMMIT_UPDATE_URL"
	envVersionToken  = "AICOMMIT_VERSION_TOKEN"
	envStateDir      = "AICOMMIT_STATE_DIR"

	// Conventional key names, lowest precedence first.
	envLegacyOpenAIKey = "OPEN_AI_KEY"
	envOpenAIKey       = "OPENAI_API_KEY"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	if v, ok := vals[envModel]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := vals[envHostedPrefix]; ok && v != "" {
		cfg.HostedPrefix = v
	}
	if v, ok := vals[envOllamaBaseURL]; ok && v != "" {
		cfg.OllamaBaseURL = v
	}
	if v, ok := vals[envOpenAIBaseURL]; ok {
		cfg.OpenAIBaseURL = v
	}
	for _, key := range []string{envLegacyOpenAIKey, envOpenAIKey, envOpenAIAPIKey} {
		if v, ok := vals[key]; ok && v != "" {
			cfg.OpenAIAPIKey = v
		}
	}
	if v, ok := vals[envCandidates]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.Input("AICOMMIT_CANDIDATES must be a valid number.", err)
		}
		if n < 1 {
			return erruser.Input("AICOMMIT_CANDIDATES must be at least 1.", nil)
		}
		cfg.Candidates, err = int64ToInt(n)
		if err != nil {
			return erruser.Input("AICOMMIT_CANDIDATES value out of range.", err)
		}
	}
	if v, ok := vals[envRecentCommits]; ok && v != "" {
		if _, err := ParseRecentCommits(v); err != nil {
			return erruser.Input("AICOMMIT_RECENT_COMMITS must be a number or 'no'.", err)
		}
		cfg.RecentCommits = v
	}
	if v, ok := vals[envTimeout]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.Input("AICOMMIT_TIMEOUT must be a valid duration.", err)
		}
		cfg.Timeout = d
	}
	if v, ok := vals[envTemperature]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return erruser.Input("AICOMMIT_TEMPERATURE must be a valid number.", err)
		}
		if f < 0 || f > 2 {
			return erruser.Input("AICOMMIT_TEMPERATURE must be between 0 and 2.", nil)
		}
		cfg.Temperature = f
	}
	if v, ok := vals[envContextLimit]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.Input("AICOMMIT_CONTEXT_LIMIT must be a valid number.", err)
		}
		cfg.ContextLimit, err = int64ToInt(n)
		if err != nil {
			return erruser.Input("AICOMMIT_CONTEXT_LIMIT value out of range.", err)
		}
	}
	if v, ok := vals[envWarnThreshold]; ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return erruser.Input("AICOMMIT_WARN_THRESHOLD must be a valid number.", err)
		}
		cfg.WarnThreshold = f
	}
	if v, ok := vals[envSelfUpdate]; ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return erruser.Input("AICOMMIT_SELF_UPDATE must be 1/true/yes/on or 0/false/no/off.", err)
		}
		cfg.SelfUpdate = b
	}
	if v, ok := vals[envUpdateURL]; ok && v != "" {
		cfg.UpdateURL = v
	}
	if v, ok := vals[envVersionToken]; ok && v != "" {
		cfg.VersionToken = v
	}
	if v, ok := vals[envStateDir]; ok {
		cfg.StateDir = v
	}
	return nil
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.Model != nil && *o.Model != "" {
		cfg.Model = *o.Model
	}
	if o.Candidates != nil {
		cfg.Candidates = *o.Candidates
	}
	if o.RecentCommits != nil {
		cfg.RecentCommits = *o.RecentCommits
	}
	if o.SelfUpdate != nil {
		cfg.SelfUpdate = *o.SelfUpdate
	}
}
