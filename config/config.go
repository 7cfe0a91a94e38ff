package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Admin API and live redirect surface
	HTTP HTTPConfig `mapstructure:"http"`

	// Emitted proxy configuration
	Nginx NginxConfig `mapstructure:"nginx"`

	// Proxy reload
	Reload ReloadConfig `mapstructure:"reload"`

	// Periodic regeneration
	Resync ResyncConfig `mapstructure:"resync"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RedirectAddr    string        `mapstructure:"redirect_addr"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	PublishHits     bool          `mapstructure:"publish_hits"`
	ExpectedDomains int           `mapstructure:"expected_domains"`
}

type NginxConfig struct {
	ConfigDir  string `mapstructure:"config_dir"`
	FileSuffix string `mapstructure:"file_suffix"`
	Listen     string `mapstructure:"listen"`
}

type ReloadConfig struct {
	Driver           string        `mapstructure:"driver"`
	ContainerdSocket string        `mapstructure:"containerd_socket"`
	Namespace        string        `mapstructure:"namespace"`
	ContainerID      string        `mapstructure:"container_id"`
	PIDFile          string        `mapstructure:"pid_file"`
	Signal           string        `mapstructure:"signal"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type ResyncConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// Reload drivers.
const (
	ReloadDriverContainerd = "containerd"
	ReloadDriverPIDFile    = "pidfile"
	ReloadDriverNone       = "none"
)

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.redirect_addr", ":8081")
	v.SetDefault("http.rate_limit", 100)
	v.SetDefault("http.rate_window", time.Minute)
	v.SetDefault("http.publish_hits", true)
	v.SetDefault("http.expected_domains", 10000)

	v.SetDefault("nginx.config_dir", "/etc/nginx/conf.d/redirects")
	v.SetDefault("nginx.file_suffix", ".conf")
	v.SetDefault("nginx.listen", "80")

	v.SetDefault("reload.driver", ReloadDriverNone)
	v.SetDefault("reload.containerd_socket", "/run/containerd/containerd.sock")
	v.SetDefault("reload.namespace", "default")
	v.SetDefault("reload.signal", "HUP")
	v.SetDefault("reload.timeout", 5*time.Second)

	v.SetDefault("resync.schedule", "")
}

func (c *Config) validate() error {
	switch c.Reload.Driver {
	case ReloadDriverContainerd:
		if c.Reload.ContainerID == "" {
			return fmt.Errorf("config: reload.container_id is required for the %s driver", ReloadDriverContainerd)
		}
	case ReloadDriverPIDFile:
		if c.Reload.PIDFile == "" {
			return fmt.Errorf("config: reload.pid_file is required for the %s driver", ReloadDriverPIDFile)
		}
	case ReloadDriverNone, "":
	default:
		return fmt.Errorf("config: unknown reload driver %q", c.Reload.Driver)
	}
	if c.Nginx.ConfigDir == "" {
		return fmt.Errorf("config: nginx.config_dir is required")
	}
	return nil
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")
	v.BindEnv("postgres.min_conns", "PG_MIN_CONNS")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// HTTP
	v.BindEnv("http.addr", "HTTP_ADDR")
	v.BindEnv("http.redirect_addr", "HTTP_REDIRECT_ADDR")
	v.BindEnv("http.rate_limit", "HTTP_RATE_LIMIT")

	// Nginx
	v.BindEnv("nginx.config_dir", "NGINX_CONFIG_DIR")
	v.BindEnv("nginx.file_suffix", "NGINX_FILE_SUFFIX")
	v.BindEnv("nginx.listen", "NGINX_LISTEN")

	// Reload
	v.BindEnv("reload.driver", "RELOAD_DRIVER")
	v.BindEnv("reload.containerd_socket", "CONTAINERD_SOCKET")
	v.BindEnv("reload.namespace", "CONTAINERD_NAMESPACE")
	v.BindEnv("reload.container_id", "NGINX_CONTAINER")
	v.BindEnv("reload.pid_file", "NGINX_PID_FILE")
	v.BindEnv("reload.signal", "RELOAD_SIGNAL")
	v.BindEnv("reload.timeout", "RELOAD_TIMEOUT")

	// Resync
	v.BindEnv("resync.schedule", "RESYNC_SCHEDULE")
}
