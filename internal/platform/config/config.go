package config

import (
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Extractor modes.
const (
	ExtractorSimulated = "simulated"
	ExtractorHTTP      = "http"
)

// Config is the root application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Verification VerificationConfig `yaml:"verification"`
	Storage      StorageConfig      `yaml:"storage"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Admin        AdminConfig        `yaml:"admin"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"SERVER_REQUEST_TIMEOUT"  env-default:"45s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// VerificationConfig holds intake limits and classifier settings.
type VerificationConfig struct {
	MaxDocumentBytes      int64         `yaml:"max_document_bytes"       env:"VERIFICATION_MAX_DOCUMENT_BYTES"       env-default:"10485760"`
	MaxAudioBytes         int64         `yaml:"max_audio_bytes"          env:"VERIFICATION_MAX_AUDIO_BYTES"          env-default:"52428800"`
	Extractor             string        `yaml:"extractor"                env:"VERIFICATION_EXTRACTOR"                env-default:"simulated"`
	ClassifierURL         string        `yaml:"classifier_url"           env:"VERIFICATION_CLASSIFIER_URL"`
	ClassifierAPIKey      string        `yaml:"classifier_api_key"       env:"VERIFICATION_CLASSIFIER_API_KEY"`
	ClassifierTimeout     time.Duration `yaml:"classifier_timeout"       env:"VERIFICATION_CLASSIFIER_TIMEOUT"       env-default:"5s"`
	ClassifierProbeEvery  time.Duration `yaml:"classifier_probe_every"   env:"VERIFICATION_CLASSIFIER_PROBE_EVERY"   env-default:"10s"`
	ClassifierMaxFailures int           `yaml:"classifier_max_failures"  env:"VERIFICATION_CLASSIFIER_MAX_FAILURES"  env-default:"5"`
	DefaultUseCase        string        `yaml:"default_use_case"         env:"VERIFICATION_DEFAULT_USE_CASE"         env-default:"AI Training"`
}

// StorageConfig selects the record and fingerprint backends.
// Records live in memory or Postgres; fingerprints in memory, Postgres or Redis.
type StorageConfig struct {
	Records      string `yaml:"records"      env:"STORAGE_RECORDS"      env-default:"memory"`
	Fingerprints string `yaml:"fingerprints" env:"STORAGE_FINGERPRINTS" env-default:"memory"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `yaml:"url"               env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns"    env:"DATABASE_MAX_OPEN_CONNS"    env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    env:"DATABASE_MAX_IDLE_CONNS"    env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" env-default:"5m"`
	AutoMigrate     bool          `yaml:"auto_migrate"      env:"DATABASE_AUTO_MIGRATE"      env-default:"true"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string        `yaml:"url"            env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"      env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout"   env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
}

// KafkaConfig configures the audit event sink. Empty brokers disables it.
type KafkaConfig struct {
	Brokers         string        `yaml:"brokers"          env:"KAFKA_BROKERS"`
	AuditTopic      string        `yaml:"audit_topic"      env:"KAFKA_AUDIT_TOPIC"      env-default:"verification.audit"`
	Acks            string        `yaml:"acks"             env:"KAFKA_ACKS"             env-default:"all"`
	Retries         int           `yaml:"retries"          env:"KAFKA_RETRIES"          env-default:"3"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout" env:"KAFKA_DELIVERY_TIMEOUT" env-default:"30s"`
}

// AdminConfig guards the administrative routes. An empty token disables them.
type AdminConfig struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func (c *Config) UsesPostgres() bool {
	return c.Storage.Records == BackendPostgres || c.Storage.Fingerprints == BackendPostgres
}

func (c *Config) UsesRedis() bool {
	return c.Storage.Fingerprints == BackendRedis
}

func (c *Config) KafkaEnabled() bool {
	return c.Kafka.Brokers != ""
}
