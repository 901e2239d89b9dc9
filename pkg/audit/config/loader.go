package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads a Config from a yaml file with environment overrides
// (AUDITTRAIL_ prefix, dots replaced by underscores). When no path is given
// the search path is consulted and a missing file is not an error; defaults
// and the environment still apply. The result is validated before being
// returned.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("audittrail")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("AUDITTRAIL")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("hash_algorithm", "sha256")
	vip.SetDefault("retention_days", defaultRetentionDays)
	vip.SetDefault("buffer_size", defaultBufferSize)
	vip.SetDefault("flush_interval", defaultFlushInterval)
	vip.SetDefault("store.type", string(StoreMemory))

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field requirements that the
// struct tags cannot express.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(&c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
