package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxRetries         = 3
	DefaultSessionCacheSize   = 256
	DefaultScreenshotOffset   = time.Second
	DefaultScreenshotMaxWidth = 640
	DefaultWaveformBuckets    = 200
	DefaultExtractionTimeout  = 2 * time.Minute
	DefaultPresignExpiry      = 15 * time.Minute
)

func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return err
	}

	return nil
}

// BindAddress is the host:port pair the HTTP server listens on.
func (c *Config) BindAddress() string {
	return fmt.Sprintf("%v:%v", c.Server.Address, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("upload.max_retries", DefaultMaxRetries)
	v.SetDefault("upload.session_cache_size", DefaultSessionCacheSize)
	v.SetDefault("extraction.ffmpeg_path", "ffmpeg")
	v.SetDefault("extraction.ffprobe_path", "ffprobe")
	v.SetDefault("extraction.screenshot_offset", DefaultScreenshotOffset)
	v.SetDefault("extraction.screenshot_max_width", DefaultScreenshotMaxWidth)
	v.SetDefault("extraction.waveform_buckets", DefaultWaveformBuckets)
	v.SetDefault("extraction.timeout", DefaultExtractionTimeout)
	v.SetDefault("credentials.expires_in", DefaultPresignExpiry)
	v.SetDefault("credentials.key_pattern", "{year}/{month}/{filename}")
	v.SetDefault("credentials.allowed_origin", "*")
}

// LoadConfig reads a YAML file, overlays MEDIADROP_* environment variables and validates the
// result. Secrets are usually supplied through the environment, e.g. MEDIADROP_AUTH_JWT_SECRET.
func LoadConfig(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mediadrop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("read in fail")
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Println("unmarshal fail")
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		log.Println("validate fail")
		return nil, err
	}

	return &cfg, nil
}
