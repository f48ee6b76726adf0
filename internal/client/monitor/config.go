package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// Tier порог качества: latency и packet loss не выше указанных
type Tier struct {
	Quality    models.NetworkQuality `yaml:"quality"`
	MaxLatency time.Duration         `yaml:"max_latency"`
	MaxLoss    float64               `yaml:"max_loss"`
}

// DefaultTiers returns the four ascending quality tiers
func DefaultTiers() []Tier {
	return []Tier{
		{Quality: models.QualityExcellent, MaxLatency: 100 * time.Millisecond, MaxLoss: 0.01},
		{Quality: models.QualityGood, MaxLatency: 300 * time.Millisecond, MaxLoss: 0.05},
		{Quality: models.QualityFair, MaxLatency: time.Second, MaxLoss: 0.15},
		{Quality: models.QualityPoor, MaxLatency: 3 * time.Second, MaxLoss: 0.30},
	}
}

// Config параметры Connection Monitor
type Config struct {
	PingPaths            []string      `yaml:"ping_paths"`
	Tiers                []Tier        `yaml:"tiers"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	QualityInterval      time.Duration `yaml:"quality_interval"`
	ReconnectBase        time.Duration `yaml:"reconnect_base"`
	ReconnectMax         time.Duration `yaml:"reconnect_max"`
	BandwidthBytes       int           `yaml:"bandwidth_bytes"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	// StaleFactor сколько интервалов heartbeat без успеха до перехода в disconnected
	StaleFactor int `yaml:"stale_factor"`
	WindowSize  int `yaml:"window_size"`
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() Config {
	return Config{
		PingPaths:            []string{api.PathPing, api.PathHealth},
		Tiers:                DefaultTiers(),
		HeartbeatInterval:    30 * time.Second,
		QualityInterval:      2 * time.Minute,
		ReconnectBase:        time.Second,
		ReconnectMax:         30 * time.Second,
		BandwidthBytes:       64 << 10,
		MaxReconnectAttempts: 5,
		StaleFactor:          3,
		WindowSize:           20,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if len(c.PingPaths) == 0 {
		return errors.New("at least one ping path is required")
	}
	if c.HeartbeatInterval <= 0 || c.QualityInterval <= 0 {
		return errors.New("heartbeat and quality intervals must be positive")
	}
	if c.ReconnectBase <= 0 || c.ReconnectMax < c.ReconnectBase {
		return fmt.Errorf("invalid reconnect backoff %s..%s", c.ReconnectBase, c.ReconnectMax)
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("max reconnect attempts cannot be negative")
	}
	if c.StaleFactor < 1 || c.WindowSize < 1 {
		return errors.New("stale factor and window size must be at least 1")
	}
	if c.BandwidthBytes <= 0 {
		return errors.New("bandwidth probe size must be positive")
	}
	if len(c.Tiers) == 0 {
		return errors.New("at least one quality tier is required")
	}
	for i := 1; i < len(c.Tiers); i++ {
		if c.Tiers[i].MaxLatency < c.Tiers[i-1].MaxLatency || c.Tiers[i].MaxLoss < c.Tiers[i-1].MaxLoss {
			return fmt.Errorf("quality tier %s must not be stricter than %s", c.Tiers[i].Quality, c.Tiers[i-1].Quality)
		}
	}
	return nil
}

// Classify maps latency and packet loss onto a quality tier. When both values
// exceed the worst tier the network is considered offline.
func Classify(tiers []Tier, latency time.Duration, loss float64) models.NetworkQuality {
	if len(tiers) == 0 {
		return models.QualityOffline
	}
	for _, t := range tiers {
		if latency <= t.MaxLatency && loss <= t.MaxLoss {
			return t.Quality
		}
	}
	worst := tiers[len(tiers)-1]
	if latency > worst.MaxLatency && loss > worst.MaxLoss {
		return models.QualityOffline
	}
	return worst.Quality
}
