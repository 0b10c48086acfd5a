package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Deployment profiles. They share the aggregation code and differ in how the
// record store and the identity gate are backed.
const (
	ProfileMulti  = "multi"  // relational store + JWT accounts
	ProfileSingle = "single" // relational store, one implicit local owner
	ProfileLocal  = "local"  // Redis key-indexed store, one implicit local owner
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort       string
	Profile       string
	JWTSecret     string
	TokenTTLHours int
	// Relational store
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Redis for the local store, token blacklist and caching
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// RedisKeyPrefix namespaces the local record store keys.
	RedisKeyPrefix string
	// HTTP
	RateLimitPerMinute  int
	AllowedOrigins      []string
	LeaderboardCacheSec int
	GinMode             string
	GinPath             string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort             string   `json:"AppPort"`
		Profile             string   `json:"Profile"`
		JWTSecret           string   `json:"JWTSecret"`
		TokenTTLHours       int      `json:"TokenTTLHours"`
		RateLimitPerMinute  int      `json:"RateLimitPerMinute"`
		AllowedOrigins      []string `json:"AllowedOrigins"`
		LeaderboardCacheSec int      `json:"LeaderboardCacheSec"`
	} `json:"app"`
	Database struct {
		Driver      string `json:"Driver"`
		DatabaseURI string `json:"DatabaseURI"`
		DBHost      string `json:"DBHost"`
		DBPort      string `json:"DBPort"`
		DBUser      string `json:"DBUser"`
		DBPassword  string `json:"DBPassword"`
		DBName      string `json:"DBName"`
		SQLitePath  string `json:"SQLitePath"`
	} `json:"database"`
	Redis struct {
		RedisHost     string `json:"RedisHost"`
		RedisPort     int    `json:"RedisPort"`
		RedisDB       int    `json:"RedisDB"`
		RedisPassword string `json:"RedisPassword"`
		KeyPrefix     string `json:"KeyPrefix"`
	} `json:"redis"`
	Gin struct {
		Mode    string `json:"Mode"`
		LogPath string `json:"LogPath"`
	} `json:"gin"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
}

// Load reads configuration. Precedence: JSON file -> defaults -> .env -> environment.
// A missing JSON file is not an error.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	if err := loadJSONConfig(path, &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)

	// .env only fills variables that are not already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	// driver default depends on the final profile
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
		if cfg.Profile == ProfileMulti {
			cfg.DBDriver = "mysql"
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks values that have no sane default.
func (c AppConfig) Validate() error {
	switch c.Profile {
	case ProfileMulti:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET must be set for the multi profile")
		}
	case ProfileSingle, ProfileLocal:
	default:
		return fmt.Errorf("unknown profile %q", c.Profile)
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.DBDriver)
	}
	if c.TokenTTLHours <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}

func loadJSONConfig(path string, out *AppConfig) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	out.AppPort = fc.App.AppPort
	out.Profile = fc.App.Profile
	out.JWTSecret = fc.App.JWTSecret
	out.TokenTTLHours = fc.App.TokenTTLHours
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.LeaderboardCacheSec = fc.App.LeaderboardCacheSec

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName
	out.SQLitePath = fc.Database.SQLitePath

	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword
	out.RedisKeyPrefix = fc.Redis.KeyPrefix

	out.GinMode = fc.Gin.Mode
	out.GinPath = fc.Gin.LogPath

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3001"
	}
	if c.Profile == "" {
		c.Profile = ProfileMulti
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 24
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "hongbao"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/red_packets.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.RedisKeyPrefix == "" {
		c.RedisKeyPrefix = "hb:"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.LeaderboardCacheSec == 0 {
		c.LeaderboardCacheSec = 60
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":         &c.AppPort,
		"APP_PROFILE":      &c.Profile,
		"JWT_SECRET":       &c.JWTSecret,
		"DB_DRIVER":        &c.DBDriver,
		"DATABASE_URI":     &c.DatabaseURI,
		"DB_HOST":          &c.DBHost,
		"DB_PORT":          &c.DBPort,
		"DB_USER":          &c.DBUser,
		"DB_PASSWORD":      &c.DBPassword,
		"DB_NAME":          &c.DBName,
		"SQLITE_PATH":      &c.SQLitePath,
		"REDIS_HOST":       &c.RedisHost,
		"REDIS_PASSWORD":   &c.RedisPassword,
		"REDIS_KEY_PREFIX": &c.RedisKeyPrefix,
		"GIN_MODE":         &c.GinMode,
		"GIN_PATH":         &c.GinPath,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_PATH":         &c.LogPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TOKEN_TTL_HOURS":       &c.TokenTTLHours,
		"REDIS_PORT":            &c.RedisPort,
		"REDIS_DB":              &c.RedisDB,
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"LEADERBOARD_CACHE_SEC": &c.LeaderboardCacheSec,
		"LOG_MAX_SIZE_MB":       &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":       &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":      &c.LogMaxAgeDays,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			*dst = i
		}
	}

	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "true"
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
