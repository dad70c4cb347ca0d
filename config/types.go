package config

import "time"

type Config struct {
	Debug       bool        `mapstructure:"debug"`
	Server      Server      `mapstructure:"server"`
	Auth        Auth        `mapstructure:"auth"`
	Credentials Credentials `mapstructure:"credentials"`
	Upload      Upload      `mapstructure:"upload"`
	Extraction  Extraction  `mapstructure:"extraction"`
	Vendor      Vendor      `mapstructure:"vendor"`
	Content     Content     `mapstructure:"content"`
}

type Server struct {
	Address        string       `mapstructure:"address" validate:"required,hostname|ip"`
	Port           int          `mapstructure:"port" validate:"min=0,max=65535"`
	PublicUrl      string       `mapstructure:"public_url" validate:"required,url"`
	MaxConnections int          `mapstructure:"max_connections" validate:"min=0"`
	Limits         ServerLimits `mapstructure:"limits"`
}

type ServerLimits struct {
	MaxFileSize     uint `mapstructure:"max_file_size" validate:"required"`
	MaxMultipartMem uint `mapstructure:"max_multipart_mem" validate:"required"`
}

// Auth guards the session and asset APIs with HS256 bearer tokens.
type Auth struct {
	JwtSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`
	Issuer    string `mapstructure:"issuer"`
}

// Credentials configures the presigned-upload credential endpoint.
type Credentials struct {
	Enabled         bool          `mapstructure:"enabled"`
	Secret          string        `mapstructure:"secret" validate:"required_if=Enabled true"`
	Region          string        `mapstructure:"region" validate:"required_if=Enabled true"`
	Bucket          string        `mapstructure:"bucket" validate:"required_if=Enabled true"`
	AccessKeyId     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Endpoint        string        `mapstructure:"endpoint" validate:"omitempty,url"`
	KeyPattern      string        `mapstructure:"key_pattern" validate:"pathpattern"`
	ExpiresIn       time.Duration `mapstructure:"expires_in"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

type Upload struct {
	MaxRetries       int    `mapstructure:"max_retries" validate:"min=0"`
	TempDir          string `mapstructure:"temp_dir" validate:"omitempty,abspath"`
	SessionCacheSize int    `mapstructure:"session_cache_size" validate:"min=0"`
}

type Extraction struct {
	FfmpegPath         string        `mapstructure:"ffmpeg_path"`
	FfprobePath        string        `mapstructure:"ffprobe_path"`
	ScreenshotOffset   time.Duration `mapstructure:"screenshot_offset"`
	ScreenshotMaxWidth int           `mapstructure:"screenshot_max_width" validate:"min=0"`
	WaveformBuckets    int           `mapstructure:"waveform_buckets" validate:"min=0"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type Vendor struct {
	Strategy    string                    `mapstructure:"strategy" validate:"required,oneof=s3 presigned filesystem noop"`
	Credentials map[string]string         `mapstructure:"credentials"`
	S3          *S3VendorStrategy         `mapstructure:"s3" validate:"required_if=Strategy s3"`
	Presigned   *PresignedVendorStrategy  `mapstructure:"presigned" validate:"required_if=Strategy presigned"`
	Filesystem  *FilesystemVendorStrategy `mapstructure:"filesystem" validate:"required_if=Strategy filesystem"`
}

// S3VendorStrategy holds the non-secret parts of the S3 target; keys live in Vendor.Credentials.
type S3VendorStrategy struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	PublicUrl      string `mapstructure:"public_url" validate:"omitempty,url"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	DisableSSL     bool   `mapstructure:"disable_ssl"`
	PathPattern    string `mapstructure:"path_pattern" validate:"pathpattern"`
}

type PresignedVendorStrategy struct {
	Endpoint string        `mapstructure:"endpoint" validate:"required,url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type FilesystemVendorStrategy struct {
	Path        string `mapstructure:"path" validate:"required,abspath"`
	PublicUrl   string `mapstructure:"public_url" validate:"required,url"`
	PathPattern string `mapstructure:"path_pattern" validate:"pathpattern"`
}

type Content struct {
	Strategy   string                     `mapstructure:"strategy" validate:"required,oneof=sql d1 git filesystem noop"`
	SQL        *SQLContentStrategy        `mapstructure:"sql" validate:"required_if=Strategy sql"`
	D1         *D1ContentStrategy         `mapstructure:"d1" validate:"required_if=Strategy d1"`
	Git        *GitContentStrategy        `mapstructure:"git" validate:"required_if=Strategy git"`
	Filesystem *FilesystemContentStrategy `mapstructure:"filesystem" validate:"required_if=Strategy filesystem"`
}

type SQLContentStrategy struct {
	Driver      string  `mapstructure:"driver" validate:"required,oneof=postgres mysql"`
	DSN         string  `mapstructure:"dsn" validate:"required"`
	TablePrefix *string `mapstructure:"table_prefix" validate:"omitempty,identifier"`
}

type D1ContentStrategy struct {
	AccountID   string  `mapstructure:"account_id" validate:"required"`
	DatabaseID  string  `mapstructure:"database_id" validate:"required"`
	APIToken    string  `mapstructure:"api_token" validate:"required"`
	Endpoint    string  `mapstructure:"endpoint" validate:"omitempty,url"`
	TablePrefix *string `mapstructure:"table_prefix" validate:"omitempty,identifier"`
}

type GitContentStrategy struct {
	Repository string                 `mapstructure:"repository" validate:"required"`
	Branch     string                 `mapstructure:"branch"`
	Path       string                 `mapstructure:"path" validate:"required,localpath"`
	Auth       GitContentStrategyAuth `mapstructure:"auth"`
}

type GitContentStrategyAuth struct {
	Method string                `mapstructure:"method" validate:"required,oneof=none plain ssh"`
	Plain  *UsernamePasswordAuth `mapstructure:"plain" validate:"required_if=Method plain"`
	Ssh    *SshKeyAuth           `mapstructure:"ssh" validate:"required_if=Method ssh"`
}

type UsernamePasswordAuth struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
}

type SshKeyAuth struct {
	Username           string `mapstructure:"username" validate:"required"`
	PrivateKeyFilePath string `mapstructure:"private_key_file_path" validate:"required,file"`
	Passphrase         string `mapstructure:"passphrase"`
}

type FilesystemContentStrategy struct {
	Path string `mapstructure:"path" validate:"required,abspath"`
}
