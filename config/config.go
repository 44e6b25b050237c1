package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPath is the configuration document read when no path is given
const DefaultPath = "config/config.yaml"

// ErrMissingDatabaseConfig is returned when required connection parameters are absent
var ErrMissingDatabaseConfig = errors.New("missing required database parameters")

// Config is the pipeline configuration. It is built once at process start and
// passed to every component; nothing reads it as ambient state.
type Config struct {
	Generation GenerationConfig    `yaml:"data_generation"`
	Database   DatabaseConfig      `yaml:"database"`
	Pipeline   PipelineConfig      `yaml:"pipeline"`
	Paths      PathsConfig         `yaml:"paths"`
	Redis      RedisConfig         `yaml:"redis"`
	Kafka      KafkaConfig         `yaml:"kafka"`
	Observ     ObservabilityConfig `yaml:"observability"`
	Monitor    MonitorConfig       `yaml:"monitor"`
}

type GenerationConfig struct {
	Customers    int    `yaml:"customers" env:"GEN_CUSTOMERS" env-default:"1000"`
	Products     int    `yaml:"products" env:"GEN_PRODUCTS" env-default:"200"`
	Transactions int    `yaml:"transactions" env:"GEN_TRANSACTIONS" env-default:"5000"`
	StartDate    string `yaml:"start_date" env:"GEN_START_DATE" env-default:"2024-01-01"`
	EndDate      string `yaml:"end_date" env:"GEN_END_DATE" env-default:"2024-12-31"`
	Seed         int64  `yaml:"seed" env:"GEN_SEED" env-default:"0"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	Name         string `yaml:"name" env:"DB_NAME" env-default:"ecommerce_db"`
	User         string `yaml:"user" env:"DB_USER"`
	Password     string `yaml:"password" env:"DB_PASSWORD"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
}

type PipelineConfig struct {
	BatchSize      int           `yaml:"batch_size" env:"PIPELINE_BATCH_SIZE" env-default:"1000"`
	RetentionDays  int           `yaml:"retention_days" env:"PIPELINE_RETENTION_DAYS" env-default:"7"`
	ScheduleTime   string        `yaml:"schedule_time" env:"PIPELINE_SCHEDULE_TIME" env-default:"02:00"`
	MaxRetries     int           `yaml:"max_retries" env:"PIPELINE_MAX_RETRIES" env-default:"3"`
	BackoffSeconds []int         `yaml:"backoff_seconds" env:"PIPELINE_BACKOFF_SECONDS" env-default:"1,2,4"`
	StepTimeout    time.Duration `yaml:"step_timeout" env:"PIPELINE_STEP_TIMEOUT" env-default:"30m"`
	LockBackend    string        `yaml:"lock_backend" env:"PIPELINE_LOCK_BACKEND" env-default:"file"`
	LockFile       string        `yaml:"lock_file" env:"PIPELINE_LOCK_FILE" env-default:"logs/pipeline.lock"`
	LockTTL        time.Duration `yaml:"lock_ttl" env:"PIPELINE_LOCK_TTL" env-default:"6h"`
	MigrationsPath string        `yaml:"migrations_path" env:"PIPELINE_MIGRATIONS_PATH" env-default:"migrations"`
}

type PathsConfig struct {
	RawDir       string `yaml:"raw_dir" env:"PATH_RAW_DIR" env-default:"data/raw"`
	StagingDir   string `yaml:"staging_dir" env:"PATH_STAGING_DIR" env-default:"data/staging"`
	ProcessedDir string `yaml:"processed_dir" env:"PATH_PROCESSED_DIR" env-default:"data/processed"`
	AnalyticsDir string `yaml:"analytics_dir" env:"PATH_ANALYTICS_DIR" env-default:"data/processed/analytics"`
	LogDir       string `yaml:"log_dir" env:"PATH_LOG_DIR" env-default:"logs"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic         string   `yaml:"topic" env:"KAFKA_TOPIC_PIPELINE_EVENTS" env-default:"pipeline-events"`
	ConsumerGroup string   `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"pipeline-monitor-group"`
}

// Enabled reports whether lifecycle events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Brokers[0] != ""
}

type ObservabilityConfig struct {
	Env            string `yaml:"env" env:"ENV" env-default:"development"`
	JaegerEndpoint string `yaml:"jaeger_endpoint" env:"JAEGER_ENDPOINT"`
}

type MonitorConfig struct {
	ListenAddr         string        `yaml:"listen_addr" env:"MONITOR_LISTEN_ADDR" env-default:":8080"`
	FreshnessThreshold time.Duration `yaml:"freshness_threshold" env:"MONITOR_FRESHNESS_THRESHOLD" env-default:"26h"`
}

// Load reads the YAML document at path, then applies environment overrides.
// A missing document is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded: env=%s, db=%s@%s:%d/%s",
		cfg.Observ.Env, cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	return cfg, nil
}

// Validate checks the parameters the pipeline cannot start without
func (c *Config) Validate() error {
	var missing []string
	if c.Database.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Database.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if c.Database.User == "" {
		missing = append(missing, "DB_USER")
	}
	if c.Database.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDatabaseConfig, strings.Join(missing, ", "))
	}

	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline.max_retries must be at least 1, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if _, err := c.Pipeline.ScheduleClock(); err != nil {
		return err
	}
	if _, _, err := c.Generation.DateRange(); err != nil {
		return err
	}
	return nil
}

// URL returns the lib/pq connection string
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// Backoff converts the configured schedule into durations
func (p PipelineConfig) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(p.BackoffSeconds))
	for _, s := range p.BackoffSeconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// ScheduleClock parses schedule_time (HH:MM) into hour and minute
func (p PipelineConfig) ScheduleClock() (time.Duration, error) {
	t, err := time.Parse("15:04", p.ScheduleTime)
	if err != nil {
		return 0, fmt.Errorf("invalid pipeline.schedule_time %q: %w", p.ScheduleTime, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// DateRange parses the transaction date window
func (g GenerationConfig) DateRange() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", g.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid data_generation.start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", g.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid data_generation.end_date: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("data_generation.end_date %s is before start_date %s", g.EndDate, g.StartDate)
	}
	return start, end, nil
}
