// Package config parses the server configuration from flags and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/database"
)

// Config 应用配置
type Config struct {
	TCPAddr  string `name:"tcp-addr" env:"TCP_ADDR" default:":1234" help:"Batch upload listen address."`
	UDPAddr  string `name:"udp-addr" env:"UDP_ADDR" default:":1235" help:"Probe echo listen address."`
	HTTPAddr string `name:"http-addr" env:"PORT" default:":8080" help:"Reporting API listen address."`

	DBType string `name:"db-type" env:"DB_TYPE" default:"sqlite" enum:"sqlite,pgx" help:"Store driver (sqlite or pgx)."`
	DBPath string `name:"db-path" env:"DB_PATH" default:"./data/coverage.db" help:"SQLite database file."`
	DBDSN  string `name:"db-dsn" env:"DB_DSN" help:"PostgreSQL connection string."`

	ReadTimeout time.Duration `name:"read-timeout" env:"READ_TIMEOUT" default:"5s" help:"Idle timeout of upload connections."`

	DirectionsKeyFile string `name:"directions-key-file" env:"DIRECTIONS_KEY_FILE" default:"google-directions-api-key.txt" help:"File holding the Google Directions API key."`
	DirectionsURL     string `name:"directions-url" env:"DIRECTIONS_URL" default:"https://maps.googleapis.com/maps/api/directions/json" help:"Google Directions endpoint."`

	LogLevel  string `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"trace,debug,info,warn,error" help:"Log level."`
	LogFormat string `name:"log-format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log format."`

	RateLimit int `name:"rate-limit" env:"RATE_LIMIT" default:"30" help:"Route queries per client per minute."`
}

// Load 加载配置
func Load(args []string) (*Config, error) {
	var cfg Config
	parser, err := kong.New(&cfg,
		kong.Name("coverage-server"),
		kong.Description("Collects network coverage measurements and reports coverage quality."),
		kong.Exit(func(code int) { os.Exit(code) }),
	)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations kong cannot express.
func (c *Config) Validate() error {
	if c.DBType == database.DriverPostgres && c.DBDSN == "" {
		return fmt.Errorf("--db-dsn is required with --db-type=pgx")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("--rate-limit must be positive")
	}
	return nil
}

// Database returns the store configuration.
func (c *Config) Database() database.Config {
	return database.Config{Driver: c.DBType, Path: c.DBPath, DSN: c.DBDSN}
}

// Logger builds the process logger.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
