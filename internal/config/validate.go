package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCoze(); err != nil {
		return err
	}
	if err := c.validateFeishu(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCoze() error {
	if c.Coze.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/vidbatch/config.toml"
		}
		return fmt.Errorf("coze.token is required. Set COZE_API_TOKEN env var or edit %s (create with 'vidbatch config init')", defaultPath)
	}
	if c.Coze.WorkflowID == "" {
		return errors.New("coze.workflow_id must be set")
	}
	if c.Coze.MaxAttempts < 1 {
		return errors.New("coze.max_attempts must be at least 1")
	}
	if c.Coze.PollInterval < 1 {
		return errors.New("coze.poll_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validateFeishu() error {
	if c.Feishu.AppID == "" {
		return errors.New("feishu.app_id must be set")
	}
	if c.Feishu.AppSecret == "" {
		return errors.New("feishu.app_secret is required. Set FEISHU_APP_SECRET env var or add it to the config file")
	}
	if c.Feishu.AppToken == "" {
		return errors.New("feishu.app_token must be set")
	}
	if c.Feishu.ContentTable.TableID == "" {
		return errors.New("feishu.content_table.table_id must be set")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.MaxWorkers < 1 {
		return errors.New("batch.max_workers must be at least 1")
	}
	if c.Batch.MaxWorkers > 64 {
		return errors.New("batch.max_workers above 64 is almost certainly a mistake")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
