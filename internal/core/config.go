package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Output  OutputConfig       `mapstructure:"output"`
}

type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type OutputConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	SessionFile string `mapstructure:"session_file"`
	Sidecars    bool   `mapstructure:"sidecars"`
}

// LoadConfig reads the configuration file, falling back to defaults when no
// file exists.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pia-scrap"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.mode", "auto")
	v.SetDefault("crawl.max_chapters", 0)
	v.SetDefault("crawl.throttle_sec", 2.0)
	v.SetDefault("crawl.jitter_min_ms", 50)
	v.SetDefault("crawl.jitter_max_ms", 250)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.backoff_base", 1.25)
	// Observed listing page size; nothing authoritative advertises it, so it
	// stays configurable and the traversal warns when it stops matching.
	v.SetDefault("crawl.items_per_page", 20)
	v.SetDefault("crawl.max_group_advances", 40)
	v.SetDefault("crawl.max_walk_steps", 300)
	v.SetDefault("crawl.nav_timeout_sec", 15)
	v.SetDefault("crawl.step_timeout_sec", 6)
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.language", "en-US")
	v.SetDefault("crawl.verbose", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.session_file", ".session.json")
	v.SetDefault("output.sidecars", true)
}

// CLIFlags are the command-line overrides that take precedence over the
// config file.
type CLIFlags struct {
	Mode        string
	MaxChapters int
	Throttle    float64
	Proxy       string
	OutDir      string
	SessionFile string
	Headless    bool
	HeadlessSet bool
	Language    string
	Verbose     bool
}

// MergeCLIFlags applies the flags the user actually set.
func (c *Config) MergeCLIFlags(f CLIFlags) {
	if f.Mode != "" {
		c.Crawl.Mode = models.CrawlMode(f.Mode)
	}
	if f.MaxChapters > 0 {
		c.Crawl.MaxChapters = f.MaxChapters
	}
	if f.Throttle >= 0 {
		c.Crawl.ThrottleSec = f.Throttle
	}
	if f.Proxy != "" {
		c.Crawl.Proxy = f.Proxy
	}
	if f.OutDir != "" {
		c.Output.BaseDir = f.OutDir
	}
	if f.SessionFile != "" {
		c.Output.SessionFile = f.SessionFile
	}
	if f.HeadlessSet {
		c.Crawl.Headless = f.Headless
	}
	if f.Language != "" {
		c.Crawl.Language = f.Language
	}
	if f.Verbose {
		c.Crawl.Verbose = true
		c.Logging.Level = "debug"
	}
}

// LoggerConfig translates the logging section for the logger facade.
func (c *Config) LoggerConfig() utils.LogConfig {
	lc := utils.DefaultLogConfig()
	lc.Level = c.Logging.Level
	if c.Logging.LogDir != "" {
		lc.LogDir = c.Logging.LogDir
	}
	lc.MaxSize = c.Logging.Rotation.MaxSize
	lc.MaxBackups = c.Logging.Rotation.MaxBackups
	lc.MaxAge = c.Logging.Rotation.MaxAge
	lc.Compress = c.Logging.Rotation.Compress
	return lc
}
