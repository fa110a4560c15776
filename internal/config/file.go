package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/megarelay/internal/flagx"
	"github.com/dmitrijs2005/megarelay/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Duration fields use
// timex.Duration so both "5s" and integer nanoseconds are accepted. Zero
// values leave the current setting untouched.
type FileConfig struct {
	BotToken         string `json:"bot_token" yaml:"bot_token"`
	TelegramEndpoint string `json:"telegram_endpoint" yaml:"telegram_endpoint"`

	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	AccountsFile   string `json:"accounts_file" yaml:"accounts_file"`
	UsersFile      string `json:"users_file" yaml:"users_file"`
	DatabaseDSN    string `json:"database_dsn" yaml:"database_dsn"`
	MasterPassword string `json:"master_password" yaml:"master_password"`

	S3Region       string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Bucket       string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3UsePathStyle *bool          `json:"s3_use_path_style" yaml:"s3_use_path_style"`
	ShareLinkTTL   timex.Duration `json:"share_link_ttl" yaml:"share_link_ttl"`

	WorkDir          string         `json:"work_dir" yaml:"work_dir"`
	BatchSize        int            `json:"batch_size" yaml:"batch_size"`
	BatchCooldown    timex.Duration `json:"batch_cooldown" yaml:"batch_cooldown"`
	ProgressInterval timex.Duration `json:"progress_interval" yaml:"progress_interval"`
	MaxRetries       int            `json:"max_retries" yaml:"max_retries"`
	RetryDelay       timex.Duration `json:"retry_delay" yaml:"retry_delay"`
	HistorySize      int            `json:"history_size" yaml:"history_size"`

	AdminUserIDs  []int64        `json:"admin_user_ids" yaml:"admin_user_ids"`
	AdminAddr     string         `json:"admin_addr" yaml:"admin_addr"`
	AdminSecret   string         `json:"admin_secret" yaml:"admin_secret"`
	AdminTokenTTL timex.Duration `json:"admin_token_ttl" yaml:"admin_token_ttl"`
	LogChannelID  int64          `json:"log_channel_id" yaml:"log_channel_id"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays the file named by -c/-config (or $RELAY_CONFIG) onto
// config. Files ending in .yaml or .yml are decoded as YAML, everything else
// as JSON. No file configured is not an error.
func parseFile(config *Config) error {
	path := flagx.ConfigPath()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.BotToken, fc.BotToken)
	setString(&c.TelegramEndpoint, fc.TelegramEndpoint)
	setString(&c.StorageBackend, fc.StorageBackend)
	setString(&c.AccountsFile, fc.AccountsFile)
	setString(&c.UsersFile, fc.UsersFile)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.MasterPassword, fc.MasterPassword)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.S3Bucket, fc.S3Bucket)
	if fc.S3UsePathStyle != nil {
		c.S3UsePathStyle = *fc.S3UsePathStyle
	}
	setDuration(&c.ShareLinkTTL, fc.ShareLinkTTL)
	setString(&c.WorkDir, fc.WorkDir)
	setInt(&c.BatchSize, fc.BatchSize)
	setDuration(&c.BatchCooldown, fc.BatchCooldown)
	setDuration(&c.ProgressInterval, fc.ProgressInterval)
	setInt(&c.MaxRetries, fc.MaxRetries)
	setDuration(&c.RetryDelay, fc.RetryDelay)
	setInt(&c.HistorySize, fc.HistorySize)
	if len(fc.AdminUserIDs) > 0 {
		c.AdminUserIDs = append([]int64(nil), fc.AdminUserIDs...)
	}
	setString(&c.AdminAddr, fc.AdminAddr)
	setString(&c.AdminSecret, fc.AdminSecret)
	setDuration(&c.AdminTokenTTL, fc.AdminTokenTTL)
	if fc.LogChannelID != 0 {
		c.LogChannelID = fc.LogChannelID
	}
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
