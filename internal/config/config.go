package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DraftDir     string `toml:"draft_dir"`
	MaterialsDir string `toml:"materials_dir"`
	LogDir       string `toml:"log_dir"`
	StateDir     string `toml:"state_dir"`
}

// Coze contains configuration for the remote workflow-execution API.
type Coze struct {
	Token          string   `toml:"token"`
	WorkflowID     string   `toml:"workflow_id"`
	BaseURL        string   `toml:"base_url"`
	RequestTimeout int      `toml:"request_timeout"`
	PollInterval   int      `toml:"poll_interval"`
	MaxAttempts    int      `toml:"max_attempts"`
	FatalKeywords  []string `toml:"fatal_keywords"`
	FatalCodes     []string `toml:"fatal_codes"`
}

// FeishuTable identifies one bitable table plus its field mapping.
type FeishuTable struct {
	TableID      string            `toml:"table_id"`
	FieldMapping map[string]string `toml:"field_mapping"`
}

// Feishu contains configuration for the bitable work-item source.
type Feishu struct {
	AppID             string      `toml:"app_id"`
	AppSecret         string      `toml:"app_secret"`
	AppToken          string      `toml:"app_token"`
	BaseURL           string      `toml:"base_url"`
	RequestTimeout    int         `toml:"request_timeout"`
	ContentTable      FeishuTable `toml:"content_table"`
	AccountTable      FeishuTable `toml:"account_table"`
	VoiceTable        FeishuTable `toml:"voice_table"`
	DigitalHumanTable FeishuTable `toml:"digital_human_table"`
	PendingStatus     string      `toml:"pending_status"`
	DoneStatus        string      `toml:"done_status"`
	FailedStatus      string      `toml:"failed_status"`
}

// Batch contains configuration for the orchestration run itself.
type Batch struct {
	MaxWorkers    int  `toml:"max_workers"`
	UpdateSource  bool `toml:"update_source"`
	MinFreeGiB    int  `toml:"min_free_gib"`
	KeepHistory   int  `toml:"keep_history"`
	SynthesisOnly bool `toml:"synthesis_only"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidbatch.
//
// Configuration sections by subsystem:
//   - Paths: draft project folder, temp materials, logs, run state
//   - Coze: remote workflow API access and polling policy
//   - Feishu: bitable work-item source tables and field mappings
//   - Batch: worker counts and run bookkeeping
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Coze    Coze    `toml:"coze"`
	Feishu  Feishu  `toml:"feishu"`
	Batch   Batch   `toml:"batch"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidbatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for batch operation.
// DraftDir is created on a best-effort basis so preflight can surface a
// clearer error when the editor project folder is unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MaterialsDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DraftDir) != "" {
		_ = os.MkdirAll(c.Paths.DraftDir, 0o755)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
