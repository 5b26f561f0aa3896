package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds every runtime option of the scoring service.
type Settings struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerSettings  `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisSettings   `mapstructure:"redis"`
	Auth        AuthSettings    `mapstructure:"auth"`
	Logging     LoggingSettings `mapstructure:"logging"`
	Scoring     ScoringSettings `mapstructure:"scoring"`
}

type ServerSettings struct {
	Port    string `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        string `mapstructure:"port"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	DebugSQL    bool   `mapstructure:"debug_sql"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxIdle     int    `mapstructure:"max_idle"`
}

// DSN builds the MySQL data source name. multiStatements is required by the
// migration runner.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)
}

type RedisSettings struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Enabled  bool          `mapstructure:"enabled"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AuthSettings struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	VerifyUserExist bool   `mapstructure:"verify_user_exists"`
}

type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type ScoringSettings struct {
	ReEvaluationWorkers int           `mapstructure:"reevaluation_workers"`
	BatchLockName       string        `mapstructure:"batch_lock_name"`
	ItemTimeout         time.Duration `mapstructure:"item_timeout"`
	TimelineMonths      int           `mapstructure:"timeline_months"`
}

// envBindings keeps the variable names the deployment already uses.
var envBindings = map[string]string{
	"environment":                  "ENVIRONMENT",
	"server.port":                  "SERVER_PORT",
	"server.gin_mode":              "GIN_MODE",
	"database.host":                "DB_HOST",
	"database.port":                "DB_PORT",
	"database.database":            "DB_DATABASE",
	"database.username":            "DB_USERNAME",
	"database.password":            "DB_PASSWORD",
	"database.debug_sql":           "DEBUG_SQL",
	"database.auto_migrate":        "DB_AUTO_MIGRATE",
	"redis.address":                "REDIS_ADDR",
	"redis.password":               "REDIS_PASSWORD",
	"redis.db":                     "REDIS_DB",
	"redis.enabled":                "REDIS_ENABLED",
	"redis.cache_ttl":              "ANALYTICS_CACHE_TTL",
	"auth.jwt_secret":              "JWT_SECRET",
	"auth.verify_user_exists":      "AUTH_VERIFY_USER",
	"logging.level":                "LOG_LEVEL",
	"logging.format":               "LOG_FORMAT",
	"logging.file":                 "LOG_FILE",
	"scoring.reevaluation_workers": "REEVALUATION_WORKERS",
	"scoring.batch_lock_name":      "REEVALUATION_LOCK_NAME",
	"scoring.item_timeout":         "REEVALUATION_ITEM_TIMEOUT",
	"scoring.timeline_months":      "ANALYTICS_TIMELINE_MONTHS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.gin_mode", "debug")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.cache_ttl", 5*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", LogFilePath())
	v.SetDefault("scoring.reevaluation_workers", 4)
	v.SetDefault("scoring.batch_lock_name", "scoring_reevaluation_batch")
	v.SetDefault("scoring.item_timeout", 30*time.Second)
	v.SetDefault("scoring.timeline_months", 6)
}

// Load reads settings from defaults, an optional config file and the
// environment, in increasing order of precedence. An empty path skips the file.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if s.Scoring.ReEvaluationWorkers <= 0 {
		s.Scoring.ReEvaluationWorkers = 1
	}
	if s.Scoring.ItemTimeout <= 0 {
		s.Scoring.ItemTimeout = 30 * time.Second
	}
	if s.Scoring.TimelineMonths <= 0 {
		s.Scoring.TimelineMonths = 6
	}
	return &s, nil
}

// IsProduction reports whether the service runs with production defaults.
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}
