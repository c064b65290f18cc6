/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/friendsincode/schoolbell/internal/settings"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// ScheduleSource selects the live timetable feed.
type ScheduleSource string

const (
	ScheduleSourceRedis ScheduleSource = "redis"
	ScheduleSourceNATS  ScheduleSource = "nats"
	ScheduleSourceFile  ScheduleSource = "file"
	ScheduleSourceNone  ScheduleSource = "none"
)

// BellTransport selects how the relay is reached.
type BellTransport string

const (
	BellTransportSerial BellTransport = "serial"
	BellTransportTCP    BellTransport = "tcp"
	BellTransportNone   BellTransport = "none"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	InstanceID  string

	// Trusted clock
	Timezone         string
	Location         *time.Location
	TimeAPIURL       string
	TimeSyncInterval time.Duration

	// Timetable
	ScheduleSource       ScheduleSource
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	ScheduleRedisKey     string
	ScheduleRedisChannel string
	NATSURL              string
	ScheduleNATSSubject  string
	ScheduleFile         string
	ScheduleFallback     string // empty = embedded, path, http(s):// or s3://bucket/key
	ScheduleWait         time.Duration

	// S3 Object Storage configuration
	S3Region          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool // Required for MinIO

	// Bell
	BellTransport    BellTransport
	BellDevice       string
	BellDevices      []string // auto-connect allow list, most recent first
	BellTCPAddr      string
	BellDefaults     settings.Settings
	FirstShiftLabel  string
	SecondShiftLabel string

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	EnvFileLoaded string
}

// Load reads an optional .env file and the environment, applies defaults, and
// validates the result. Variables already set in the environment win over the file.
func Load() (*Config, error) {
	envFile := getEnvAny([]string{"SCHOOLBELL_ENV_FILE"}, ".env")
	loaded := ""
	if err := godotenv.Load(envFile); err == nil {
		loaded = envFile
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		Environment: getEnvAny([]string{"SCHOOLBELL_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"SCHOOLBELL_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"SCHOOLBELL_HTTP_PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"SCHOOLBELL_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"SCHOOLBELL_DB_DSN"}, "schoolbell.db"),
		InstanceID:  getEnvAny([]string{"SCHOOLBELL_INSTANCE_ID"}, ""),

		Timezone:         getEnvAny([]string{"SCHOOLBELL_TIMEZONE"}, "Europe/Belgrade"),
		TimeAPIURL:       getEnvAny([]string{"SCHOOLBELL_TIME_API_URL"}, "https://timeapi.io/api/Time/current/zone?timeZone=Europe/Belgrade"),
		TimeSyncInterval: time.Duration(getEnvIntAny([]string{"SCHOOLBELL_TIME_SYNC_INTERVAL_SECONDS"}, 300)) * time.Second,

		ScheduleSource:       ScheduleSource(strings.ToLower(getEnvAny([]string{"SCHOOLBELL_SCHEDULE_SOURCE"}, string(ScheduleSourceNone)))),
		RedisAddr:            getEnvAny([]string{"SCHOOLBELL_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:        getEnvAny([]string{"SCHOOLBELL_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:              getEnvIntAny([]string{"SCHOOLBELL_REDIS_DB", "REDIS_DB"}, 0),
		ScheduleRedisKey:     getEnvAny([]string{"SCHOOLBELL_SCHEDULE_REDIS_KEY"}, "schoolbell:schedule"),
		ScheduleRedisChannel: getEnvAny([]string{"SCHOOLBELL_SCHEDULE_REDIS_CHANNEL"}, "schoolbell:schedule:updated"),
		NATSURL:              getEnvAny([]string{"SCHOOLBELL_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		ScheduleNATSSubject:  getEnvAny([]string{"SCHOOLBELL_SCHEDULE_NATS_SUBJECT"}, "schoolbell.schedule"),
		ScheduleFile:         getEnvAny([]string{"SCHOOLBELL_SCHEDULE_FILE"}, ""),
		ScheduleFallback:     getEnvAny([]string{"SCHOOLBELL_SCHEDULE_FALLBACK"}, ""),
		ScheduleWait:         time.Duration(getEnvIntAny([]string{"SCHOOLBELL_SCHEDULE_WAIT_SECONDS"}, 3)) * time.Second,

		S3Region:          getEnvAny([]string{"SCHOOLBELL_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:        getEnvAny([]string{"SCHOOLBELL_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3AccessKeyID:     getEnvAny([]string{"SCHOOLBELL_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SCHOOLBELL_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"SCHOOLBELL_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		BellTransport: BellTransport(strings.ToLower(getEnvAny([]string{"SCHOOLBELL_BELL_TRANSPORT"}, string(BellTransportSerial)))),
		BellDevice:    getEnvAny([]string{"SCHOOLBELL_BELL_DEVICE"}, ""),
		BellDevices:   splitList(getEnvAny([]string{"SCHOOLBELL_BELL_DEVICES"}, "")),
		BellTCPAddr:   getEnvAny([]string{"SCHOOLBELL_BELL_TCP_ADDR"}, ""),
		BellDefaults: settings.Settings{
			BaudRate:           getEnvIntAny([]string{"SCHOOLBELL_BELL_BAUD_RATE"}, 9600),
			BellDurationMs:     getEnvIntAny([]string{"SCHOOLBELL_BELL_DURATION_MS"}, 5000),
			BellEnabled:        getEnvBoolAny([]string{"SCHOOLBELL_BELL_ENABLED"}, true),
			AutoConnectEnabled: getEnvBoolAny([]string{"SCHOOLBELL_BELL_AUTO_CONNECT"}, true),
		},
		FirstShiftLabel:  getEnvAny([]string{"SCHOOLBELL_FIRST_SHIFT_LABEL"}, "Prva smena"),
		SecondShiftLabel: getEnvAny([]string{"SCHOOLBELL_SECOND_SHIFT_LABEL"}, "Druga smena"),

		LogFile:       getEnvAny([]string{"SCHOOLBELL_LOG_FILE"}, ""),
		LogMaxSizeMB:  getEnvIntAny([]string{"SCHOOLBELL_LOG_MAX_SIZE_MB"}, 50),
		LogMaxBackups: getEnvIntAny([]string{"SCHOOLBELL_LOG_MAX_BACKUPS"}, 5),
		LogMaxAgeDays: getEnvIntAny([]string{"SCHOOLBELL_LOG_MAX_AGE_DAYS"}, 30),

		TracingEnabled:    getEnvBoolAny([]string{"SCHOOLBELL_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SCHOOLBELL_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SCHOOLBELL_TRACING_SAMPLE_RATE"}, 1.0),

		EnvFileLoaded: loaded,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("SCHOOLBELL_DB_DSN must be provided")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("SCHOOLBELL_TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc
	if c.TimeSyncInterval <= 0 {
		return fmt.Errorf("SCHOOLBELL_TIME_SYNC_INTERVAL_SECONDS must be positive")
	}
	if c.ScheduleWait <= 0 {
		return fmt.Errorf("SCHOOLBELL_SCHEDULE_WAIT_SECONDS must be positive")
	}

	switch c.ScheduleSource {
	case ScheduleSourceRedis, ScheduleSourceNATS, ScheduleSourceNone:
	case ScheduleSourceFile:
		if c.ScheduleFile == "" {
			return fmt.Errorf("SCHOOLBELL_SCHEDULE_FILE is required when SCHOOLBELL_SCHEDULE_SOURCE=file")
		}
	default:
		return fmt.Errorf("unsupported schedule source %q", c.ScheduleSource)
	}

	switch c.BellTransport {
	case BellTransportSerial, BellTransportNone:
	case BellTransportTCP:
		if c.BellTCPAddr == "" {
			return fmt.Errorf("SCHOOLBELL_BELL_TCP_ADDR is required when SCHOOLBELL_BELL_TRANSPORT=tcp")
		}
	default:
		return fmt.Errorf("unsupported bell transport %q", c.BellTransport)
	}

	if err := c.BellDefaults.Validate(); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether the process runs with production logging.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
