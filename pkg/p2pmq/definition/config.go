package definition

import "time"

// Config holds every tunable named in spec.md §6. All durations are
// specified in seconds in configuration sources and converted to
// time.Duration once at load time.
type Config struct {
	HeartBeatInterval          time.Duration
	HeartBeatSlowDown          time.Duration
	HeartBeatMaxInterval       time.Duration
	UnresponsiveThreshold      time.Duration
	NoConnectionThreshold      time.Duration
	UnresponsiveReconnectWait  time.Duration
	AskAroundInterval          time.Duration
	SyncDBInterval             time.Duration
	ProcessLimitPerLoop        int
	StabilizeTimeout           time.Duration
	DefaultTimeToLive          time.Duration
}

// DefaultConfig returns the defaults enumerated in spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		HeartBeatInterval:         5 * time.Second,
		HeartBeatSlowDown:         5 * time.Second,
		HeartBeatMaxInterval:      60 * time.Second,
		UnresponsiveThreshold:     15 * time.Second,
		NoConnectionThreshold:     60 * time.Second,
		UnresponsiveReconnectWait: 30 * time.Second,
		AskAroundInterval:         30 * time.Second,
		SyncDBInterval:            30 * time.Second,
		ProcessLimitPerLoop:       100,
		StabilizeTimeout:          10 * time.Second,
		DefaultTimeToLive:         60 * time.Second,
	}
}
