package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Storage       StorageConfig       `mapstructure:"storage"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Report        ReportConfig        `mapstructure:"report"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig bounds the in-process cache. Zero values fall back to the
// per-category defaults in the cache package.
type CacheConfig struct {
	PermissionTTL time.Duration `mapstructure:"permission_ttl"`
	MenuTTL       time.Duration `mapstructure:"menu_ttl"`
	RoleTTL       time.Duration `mapstructure:"role_ttl"`
	PromptTTL     time.Duration `mapstructure:"prompt_ttl"`
	GeneralTTL    time.Duration `mapstructure:"general_ttl"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	UploadBucket    string `mapstructure:"upload_bucket"`
	ResultBucket    string `mapstructure:"result_bucket"`
	ReportBucket    string `mapstructure:"report_bucket"`
	MaxUploadSizeMB int64  `mapstructure:"max_upload_size_mb"`
}

type LLMConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	APIKey             string        `mapstructure:"api_key"`
	Model              string        `mapstructure:"model"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RetryBackoffBase   time.Duration `mapstructure:"retry_backoff_base"`
	MaxCharsSingleCall int           `mapstructure:"max_chars_single_call"`
	ChunkSize          int           `mapstructure:"chunk_size"`
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
}

type ReportConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	PrintTimeout time.Duration `mapstructure:"print_timeout"`
}

// ----------------- ENV FALLBACK -----------------

// LoadConfigFromEnv builds a Config purely from environment variables, used
// for containerized deployments where no config.yml is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("JWT_ACCESS_SECRET", ""),
			RefreshTokenSecret:   getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  time.Duration(getEnvAsInt("ACCESS_TOKEN_MINUTES", 30)) * time.Minute,
			RefreshTokenDuration: time.Duration(getEnvAsInt("REFRESH_TOKEN_DAYS", 7)) * 24 * time.Hour,
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Redis: RedisConfig{
			Enabled: getEnv("REDIS_URL", "") != "",
			URL:     getEnv("REDIS_URL", ""),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:       getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:       getEnv("STORAGE_SECRET_KEY", ""),
			UseSSL:          getEnv("STORAGE_USE_SSL", "false") == "true",
			UploadBucket:    getEnv("STORAGE_UPLOAD_BUCKET", "sow-uploads"),
			ResultBucket:    getEnv("STORAGE_RESULT_BUCKET", "sow-analysis-results"),
			ReportBucket:    getEnv("STORAGE_REPORT_BUCKET", "sow-reports"),
			MaxUploadSizeMB: int64(getEnvAsInt("MAX_UPLOAD_SIZE_MB", 25)),
		},
		LLM: LLMConfig{
			BaseURL:            getEnv("LLM_BASE_URL", ""),
			APIKey:             getEnv("LLM_API_KEY", ""),
			Model:              getEnv("LLM_MODEL", "gpt-4o-mini"),
			RequestTimeout:     time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
			MaxRetries:         getEnvAsInt("LLM_MAX_RETRIES", 3),
			RetryBackoffBase:   time.Duration(getEnvAsInt("LLM_BACKOFF_SECONDS", 15)) * time.Second,
			MaxCharsSingleCall: getEnvAsInt("LLM_MAX_CHARS_SINGLE_CALL", 60000),
			ChunkSize:          getEnvAsInt("LLM_CHUNK_SIZE", 20000),
			MaxConcurrent:      getEnvAsInt("LLM_MAX_CONCURRENT", 1),
		},
		Report: ReportConfig{
			Enabled:     getEnv("REPORT_ENABLED", "true") == "true",
			PrintTimeout: time.Duration(getEnvAsInt("REPORT_TIMEOUT_SECONDS", 30)) * time.Second,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("llm config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access token secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh token secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	return nil
}

func (c *LLMConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.ChunkSize > 0 && c.MaxCharsSingleCall > 0 && c.ChunkSize > c.MaxCharsSingleCall {
		return errors.New("chunk_size cannot exceed max_chars_single_call")
	}
	return nil
}
