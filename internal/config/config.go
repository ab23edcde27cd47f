// Package config layers a TOML file on top of definition.DefaultConfig
// and then applies P2P0MQ_-prefixed environment overrides, the same
// defaults-then-file-then-env shape the teacher's pack favors for
// service configuration (BurntSushi/toml is already in go.mod's direct
// requires; this is where it finally gets exercised).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/definition"
)

// fileConfig mirrors definition.Config with every field optional, so
// a TOML file only needs to name what it overrides. Durations are
// expressed in seconds, matching spec.md §6's configuration surface.
type fileConfig struct {
	HeartBeatIntervalSeconds          *int64 `toml:"heart_beat_interval_seconds"`
	HeartBeatSlowDownSeconds          *int64 `toml:"heart_beat_slow_down_seconds"`
	HeartBeatMaxIntervalSeconds       *int64 `toml:"heart_beat_max_interval_seconds"`
	UnresponsiveThresholdSeconds      *int64 `toml:"unresponsive_threshold_seconds"`
	NoConnectionThresholdSeconds      *int64 `toml:"no_connection_threshold_seconds"`
	UnresponsiveReconnectWaitSeconds  *int64 `toml:"unresponsive_reconnect_wait_seconds"`
	AskAroundIntervalSeconds          *int64 `toml:"ask_around_interval_seconds"`
	SyncDBIntervalSeconds             *int64 `toml:"sync_db_interval_seconds"`
	ProcessLimitPerLoop               *int   `toml:"process_limit_per_loop"`
	StabilizeTimeoutSeconds           *int64 `toml:"stabilize_timeout_seconds"`
	DefaultTimeToLiveSeconds          *int64 `toml:"default_time_to_live_seconds"`
}

// Load builds a definition.Config starting from definition.DefaultConfig,
// applying path's TOML contents if path is non-empty and the file
// exists, then applying any P2P0MQ_*-prefixed environment variables.
func Load(path string) (*definition.Config, error) {
	cfg := definition.DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			var fc fileConfig
			if _, err := toml.DecodeFile(path, &fc); err != nil {
				return nil, errors.Wrapf(err, "p2pmq/config: decode %s", path)
			}
			applyFile(cfg, &fc)
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "p2pmq/config: stat %s", path)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *definition.Config, fc *fileConfig) {
	setDuration(&cfg.HeartBeatInterval, fc.HeartBeatIntervalSeconds)
	setDuration(&cfg.HeartBeatSlowDown, fc.HeartBeatSlowDownSeconds)
	setDuration(&cfg.HeartBeatMaxInterval, fc.HeartBeatMaxIntervalSeconds)
	setDuration(&cfg.UnresponsiveThreshold, fc.UnresponsiveThresholdSeconds)
	setDuration(&cfg.NoConnectionThreshold, fc.NoConnectionThresholdSeconds)
	setDuration(&cfg.UnresponsiveReconnectWait, fc.UnresponsiveReconnectWaitSeconds)
	setDuration(&cfg.AskAroundInterval, fc.AskAroundIntervalSeconds)
	setDuration(&cfg.SyncDBInterval, fc.SyncDBIntervalSeconds)
	setDuration(&cfg.StabilizeTimeout, fc.StabilizeTimeoutSeconds)
	setDuration(&cfg.DefaultTimeToLive, fc.DefaultTimeToLiveSeconds)
	if fc.ProcessLimitPerLoop != nil {
		cfg.ProcessLimitPerLoop = *fc.ProcessLimitPerLoop
	}
}

func setDuration(dst *time.Duration, seconds *int64) {
	if seconds != nil {
		*dst = time.Duration(*seconds) * time.Second
	}
}

var envDurations = map[string]func(*definition.Config) *time.Duration{
	"P2P0MQ_HEART_BEAT_INTERVAL_SECONDS":          func(c *definition.Config) *time.Duration { return &c.HeartBeatInterval },
	"P2P0MQ_HEART_BEAT_SLOW_DOWN_SECONDS":         func(c *definition.Config) *time.Duration { return &c.HeartBeatSlowDown },
	"P2P0MQ_HEART_BEAT_MAX_INTERVAL_SECONDS":      func(c *definition.Config) *time.Duration { return &c.HeartBeatMaxInterval },
	"P2P0MQ_UNRESPONSIVE_THRESHOLD_SECONDS":       func(c *definition.Config) *time.Duration { return &c.UnresponsiveThreshold },
	"P2P0MQ_NO_CONNECTION_THRESHOLD_SECONDS":      func(c *definition.Config) *time.Duration { return &c.NoConnectionThreshold },
	"P2P0MQ_UNRESPONSIVE_RECONNECT_WAIT_SECONDS":  func(c *definition.Config) *time.Duration { return &c.UnresponsiveReconnectWait },
	"P2P0MQ_ASK_AROUND_INTERVAL_SECONDS":          func(c *definition.Config) *time.Duration { return &c.AskAroundInterval },
	"P2P0MQ_SYNC_DB_INTERVAL_SECONDS":             func(c *definition.Config) *time.Duration { return &c.SyncDBInterval },
	"P2P0MQ_STABILIZE_TIMEOUT_SECONDS":            func(c *definition.Config) *time.Duration { return &c.StabilizeTimeout },
	"P2P0MQ_DEFAULT_TIME_TO_LIVE_SECONDS":         func(c *definition.Config) *time.Duration { return &c.DefaultTimeToLive },
}

func applyEnv(cfg *definition.Config) {
	for name, field := range envDurations {
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		*field(cfg) = time.Duration(seconds) * time.Second
	}

	if raw, ok := os.LookupEnv("P2P0MQ_PROCESS_LIMIT_PER_LOOP"); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.ProcessLimitPerLoop = n
		}
	}
}
