package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{BackendMemory, BackendPostgres}, c.Storage.Records) {
		errs = append(errs, fmt.Errorf("storage.records: unsupported backend %q", c.Storage.Records))
	}
	if !slices.Contains([]string{BackendMemory, BackendPostgres, BackendRedis}, c.Storage.Fingerprints) {
		errs = append(errs, fmt.Errorf("storage.fingerprints: unsupported backend %q", c.Storage.Fingerprints))
	}
	if c.UsesPostgres() && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required for the postgres backend"))
	}
	if c.UsesRedis() && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required for the redis backend"))
	}

	switch c.Verification.Extractor {
	case ExtractorSimulated:
	case ExtractorHTTP:
		if c.Verification.ClassifierURL == "" {
			errs = append(errs, errors.New("verification.classifier_url is required for the http extractor"))
		}
	default:
		errs = append(errs, fmt.Errorf("verification.extractor: unsupported mode %q", c.Verification.Extractor))
	}
	if c.Verification.MaxDocumentBytes <= 0 || c.Verification.MaxAudioBytes <= 0 {
		errs = append(errs, errors.New("verification upload limits must be positive"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
