package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCoze()
	c.normalizeFeishu()
	c.normalizeBatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DraftDir) == "" {
		c.Paths.DraftDir = defaultDraftDir
	}
	if c.Paths.DraftDir, err = expandPath(c.Paths.DraftDir); err != nil {
		return fmt.Errorf("paths.draft_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MaterialsDir) == "" {
		c.Paths.MaterialsDir = defaultMaterialsDir
	}
	if c.Paths.MaterialsDir, err = expandPath(c.Paths.MaterialsDir); err != nil {
		return fmt.Errorf("paths.materials_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCoze() {
	if c.Coze.Token == "" {
		if value, ok := os.LookupEnv("COZE_API_TOKEN"); ok {
			c.Coze.Token = value
		}
	}
	c.Coze.Token = strings.TrimSpace(c.Coze.Token)
	c.Coze.WorkflowID = strings.TrimSpace(c.Coze.WorkflowID)
	c.Coze.BaseURL = strings.TrimRight(strings.TrimSpace(c.Coze.BaseURL), "/")
	if c.Coze.BaseURL == "" {
		c.Coze.BaseURL = defaultCozeBaseURL
	}
	if c.Coze.RequestTimeout <= 0 {
		c.Coze.RequestTimeout = defaultRequestTimeout
	}
	if c.Coze.PollInterval <= 0 {
		c.Coze.PollInterval = defaultPollInterval
	}
	if c.Coze.MaxAttempts <= 0 {
		c.Coze.MaxAttempts = defaultMaxAttempts
	}
	if len(c.Coze.FatalKeywords) == 0 {
		c.Coze.FatalKeywords = append([]string{}, defaultFatalKeywords...)
	}
	if len(c.Coze.FatalCodes) == 0 {
		c.Coze.FatalCodes = append([]string{}, defaultFatalCodes...)
	}
}

func (c *Config) normalizeFeishu() {
	if c.Feishu.AppSecret == "" {
		if value, ok := os.LookupEnv("FEISHU_APP_SECRET"); ok {
			c.Feishu.AppSecret = value
		}
	}
	c.Feishu.AppID = strings.TrimSpace(c.Feishu.AppID)
	c.Feishu.AppSecret = strings.TrimSpace(c.Feishu.AppSecret)
	c.Feishu.AppToken = strings.TrimSpace(c.Feishu.AppToken)
	c.Feishu.BaseURL = strings.TrimRight(strings.TrimSpace(c.Feishu.BaseURL), "/")
	if c.Feishu.BaseURL == "" {
		c.Feishu.BaseURL = defaultFeishuBaseURL
	}
	if c.Feishu.RequestTimeout <= 0 {
		c.Feishu.RequestTimeout = defaultRequestTimeout
	}
	if strings.TrimSpace(c.Feishu.PendingStatus) == "" {
		c.Feishu.PendingStatus = defaultPendingStatus
	}
	if strings.TrimSpace(c.Feishu.DoneStatus) == "" {
		c.Feishu.DoneStatus = defaultDoneStatus
	}
	if strings.TrimSpace(c.Feishu.FailedStatus) == "" {
		c.Feishu.FailedStatus = defaultFailedStatus
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.MaxWorkers <= 0 {
		c.Batch.MaxWorkers = defaultMaxWorkers
	}
	if c.Batch.MinFreeGiB < 0 {
		c.Batch.MinFreeGiB = 0
	}
	if c.Batch.KeepHistory <= 0 {
		c.Batch.KeepHistory = defaultKeepHistory
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
