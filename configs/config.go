package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DB struct {
	Host            string
	Port            string
	User            string
	Pass            string
	Name            string
	Replicas        []string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.Host, c.Port, c.User, c.Pass, c.Name,
	)
}

type Redis struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c Redis) Addr() string { return c.Host + ":" + c.Port }

type Kafka struct {
	Bootstrap    string
	RequiredAcks string
	Async        bool
}

type Auth struct {
	JWTSecret string
	TokenTTL  time.Duration
	ResetTTL  time.Duration
}

type Vote struct {
	Timeout time.Duration
	Retries int
}

type RateLimit struct {
	Votes  int64
	Auth   int64
	Window time.Duration
}

type OTEL struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Env         string
	SampleRatio float64
}

type Log struct {
	Level  string
	Format string
}

type Config struct {
	AppPort       string
	ClientOrigin  string
	AutoMigrate   bool
	TotalCountTTL time.Duration

	DB        DB
	Redis     Redis
	Kafka     Kafka
	Auth      Auth
	Vote      Vote
	RateLimit RateLimit
	OTEL      OTEL
	Log       Log
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", ":8080")
	v.SetDefault("client_origin", "http://localhost:3000")
	v.SetDefault("auto_migrate", false)
	v.SetDefault("total_count_ttl", 30*time.Second)

	v.SetDefault("db_host", "post-db")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "post")
	v.SetDefault("db_password", "postpass")
	v.SetDefault("db_name", "reddit")
	v.SetDefault("db_replicas", "")
	v.SetDefault("db_max_open_conns", 40)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis_host", "redis")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("kafka_bootstrap_servers", "")
	v.SetDefault("kafka_required_acks", "one")
	v.SetDefault("kafka_async", false)

	v.SetDefault("jwt_secret", "replace-this-with-a-strong-secret")
	v.SetDefault("jwt_ttl", 24*time.Hour)
	v.SetDefault("reset_token_ttl", 72*time.Hour)

	v.SetDefault("vote_timeout", 3*time.Second)
	v.SetDefault("vote_retries", 3)

	v.SetDefault("rate_limit_votes", 60)
	v.SetDefault("rate_limit_auth", 20)
	v.SetDefault("rate_limit_window", time.Minute)

	v.SetDefault("otel_enabled", true)
	v.SetDefault("otel_exporter_otlp_endpoint", "otel-collector:4318")
	v.SetDefault("otel_service_name", "reddit")
	v.SetDefault("env", "dev")
	v.SetDefault("otel_traces_sampler_arg", 1.0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads defaults, then the optional config file at path, then the
// environment. Environment variables use the upper-cased key names.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		AppPort:       v.GetString("app_port"),
		ClientOrigin:  v.GetString("client_origin"),
		AutoMigrate:   v.GetBool("auto_migrate"),
		TotalCountTTL: v.GetDuration("total_count_ttl"),
		DB: DB{
			Host:            v.GetString("db_host"),
			Port:            v.GetString("db_port"),
			User:            v.GetString("db_user"),
			Pass:            v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			Replicas:        splitList(v.GetString("db_replicas")),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		Redis: Redis{
			Host:     v.GetString("redis_host"),
			Port:     v.GetString("redis_port"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Kafka: Kafka{
			Bootstrap:    v.GetString("kafka_bootstrap_servers"),
			RequiredAcks: v.GetString("kafka_required_acks"),
			Async:        v.GetBool("kafka_async"),
		},
		Auth: Auth{
			JWTSecret: v.GetString("jwt_secret"),
			TokenTTL:  v.GetDuration("jwt_ttl"),
			ResetTTL:  v.GetDuration("reset_token_ttl"),
		},
		Vote: Vote{
			Timeout: v.GetDuration("vote_timeout"),
			Retries: v.GetInt("vote_retries"),
		},
		RateLimit: RateLimit{
			Votes:  v.GetInt64("rate_limit_votes"),
			Auth:   v.GetInt64("rate_limit_auth"),
			Window: v.GetDuration("rate_limit_window"),
		},
		OTEL: OTEL{
			Enabled:     v.GetBool("otel_enabled"),
			Endpoint:    v.GetString("otel_exporter_otlp_endpoint"),
			ServiceName: v.GetString("otel_service_name"),
			Env:         v.GetString("env"),
			SampleRatio: v.GetFloat64("otel_traces_sampler_arg"),
		},
		Log: Log{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Vote.Timeout <= 0 {
		return fmt.Errorf("vote_timeout must be positive, got %s", c.Vote.Timeout)
	}
	if c.Vote.Retries < 1 {
		c.Vote.Retries = 1
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		c.OTEL.SampleRatio = 1
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must not be empty")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
