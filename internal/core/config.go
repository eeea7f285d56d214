package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/osintkit/tiercrawl/internal/crawlers"
	"github.com/osintkit/tiercrawl/internal/models"
)

// Config is the application configuration, loaded from YAML with defaults
// filled in. CLI flags are layered on top by the command layer.
type Config struct {
	Crawl   models.FetchConfig  `mapstructure:"crawl"`
	Paid    crawlers.PaidConfig `mapstructure:"paid"`
	Logging LoggingConfig       `mapstructure:"logging"`
	Output  OutputConfig        `mapstructure:"output"`
}

// LoggingConfig holds log level and rotation settings.
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig controls result serialization.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Report string `mapstructure:"report"`
}

// LoadConfig reads the config file at configPath, or searches the default
// locations when configPath is empty. A missing file is not an error; the
// defaults stand.
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
			v.AddConfigPath(filepath.Join(home, ".tiercrawl"))
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
	v.SetDefault("crawl.concurrent", models.DefaultConcurrency)
	v.SetDefault("crawl.per_domain", models.DefaultPerDomain)
	v.SetDefault("crawl.render_concurrency", models.DefaultConcurrency/5)
	v.SetDefault("crawl.timeout", "20s")
	v.SetDefault("crawl.delay", "0s")
	v.SetDefault("crawl.settle_delay", "2s")
	v.SetDefault("crawl.user_agent", models.DefaultFetchConfig().UserAgent)
	v.SetDefault("crawl.detect_js", true)
	v.SetDefault("crawl.include_html", false)
	v.SetDefault("crawl.max_content_chars", models.DefaultMaxContentChars)
	v.SetDefault("crawl.headless", true)

	v.SetDefault("paid.endpoint", "")
	v.SetDefault("paid.concurrent", 4)
	v.SetDefault("paid.timeout", "60s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.format", FormatNDJSON)
	v.SetDefault("output.report", "")
}
