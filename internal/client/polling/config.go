package polling

import (
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/validation"
)

// Mode способ опроса сущности
type Mode string

const (
	// ModeFull загружает все записи и сравнивает отпечаток с прошлым циклом
	ModeFull Mode = "full"
	// ModeDelta загружает изменения после сохраненной отметки времени
	ModeDelta Mode = "delta"
)

// EntityConfig опрашиваемая сущность
type EntityConfig struct {
	Name     string `yaml:"name"`
	Mode     Mode   `yaml:"mode"`
	Schedule string `yaml:"schedule"`
	// Priority меньше значение, раньше опрос
	Priority int `yaml:"priority"`
}

// Intervals пара базового и максимального интервала
type Intervals struct {
	Base time.Duration `yaml:"base"`
	Max  time.Duration `yaml:"max"`
}

// DefaultIntervals maps network quality to polling intervals
func DefaultIntervals() map[models.NetworkQuality]Intervals {
	return map[models.NetworkQuality]Intervals{
		models.QualityExcellent: {Base: 5 * time.Second, Max: 30 * time.Second},
		models.QualityGood:      {Base: 10 * time.Second, Max: time.Minute},
		models.QualityFair:      {Base: 20 * time.Second, Max: 2 * time.Minute},
		models.QualityPoor:      {Base: 45 * time.Second, Max: 5 * time.Minute},
		models.QualityOffline:   {Base: 2 * time.Minute, Max: 10 * time.Minute},
	}
}

// Config параметры polling fallback
type Config struct {
	Intervals            map[models.NetworkQuality]Intervals `yaml:"intervals"`
	Entities             []EntityConfig                      `yaml:"entities"`
	InitialQuality       models.NetworkQuality               `yaml:"initial_quality"`
	BackoffMultiplier    float64                             `yaml:"backoff_multiplier"`
	MaxConsecutiveErrors int                                 `yaml:"max_consecutive_errors"`
	Concurrency          int                                 `yaml:"concurrency"`
}

// DefaultConfig returns the default polling configuration
func DefaultConfig() Config {
	return Config{
		Intervals:            DefaultIntervals(),
		InitialQuality:       models.QualityGood,
		BackoffMultiplier:    1.5,
		MaxConsecutiveErrors: 5,
		Concurrency:          4,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier %.2f must be at least 1", c.BackoffMultiplier)
	}
	if c.MaxConsecutiveErrors < 1 {
		return errors.New("max consecutive errors must be at least 1")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if _, ok := c.Intervals[c.InitialQuality]; !ok {
		return fmt.Errorf("no intervals for initial quality %q", c.InitialQuality)
	}
	for q, iv := range c.Intervals {
		if iv.Base <= 0 || iv.Max < iv.Base {
			return fmt.Errorf("invalid intervals for %s: %s..%s", q, iv.Base, iv.Max)
		}
	}

	seen := make(map[string]struct{}, len(c.Entities))
	for _, e := range c.Entities {
		if err := validation.ValidateEntity(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("entity %q configured twice", e.Name)
		}
		seen[e.Name] = struct{}{}
		switch e.Mode {
		case ModeFull, ModeDelta, "":
		default:
			return fmt.Errorf("entity %q: unsupported mode %q", e.Name, e.Mode)
		}
	}
	return nil
}
