package config

import (
	"errors"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Tuning holds the match thresholds operators may adjust without a restart.
type Tuning struct {
	FuzzyThreshold  float64 `mapstructure:"fuzzyThreshold"`
	AIMinConfidence float64 `mapstructure:"aiMinConfidence"`
}

func DefaultTuning() Tuning {
	return Tuning{
		FuzzyThreshold:  0.75,
		AIMinConfidence: 0.6,
	}
}

var tuningSearchPaths = []string{"/var/lib/tixsync/config", "/etc/tixsync", "."}

// TuningHolder serves the current Tuning and swaps it when matching.yml changes.
type TuningHolder struct {
	current atomic.Value // holds Tuning
}

func NewTuningHolder(log *zap.Logger) (*TuningHolder, error) {
	return loadTuning(log.Named("config.tuning"), tuningSearchPaths...)
}

// StaticTuning returns a holder that never reloads.
func StaticTuning(t Tuning) *TuningHolder {
	h := &TuningHolder{}
	h.current.Store(t)
	return h
}

func loadTuning(log *zap.Logger, paths ...string) (*TuningHolder, error) {
	v := viper.New()
	v.SetConfigName("matching")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	defaults := DefaultTuning()
	v.SetDefault("matching.fuzzyThreshold", defaults.FuzzyThreshold)
	v.SetDefault("matching.aiMinConfidence", defaults.AIMinConfidence)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	t, err := decodeTuning(v)
	if err != nil {
		return nil, err
	}
	if err := validateTuning(t); err != nil {
		return nil, err
	}

	holder := StaticTuning(t)
	if !watch {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeTuning(v)
		if err != nil {
			log.Warn("tuning reload failed", zap.Error(err))
			return
		}
		if err := validateTuning(updated); err != nil {
			log.Warn("invalid tuning ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("tuning reloaded",
			zap.String("file", e.Name),
			zap.Float64("fuzzy_threshold", updated.FuzzyThreshold),
			zap.Float64("ai_min_confidence", updated.AIMinConfidence),
		)
	})
	v.WatchConfig()

	return holder, nil
}

// decodeTuning goes through AllSettings so defaults fill keys a partial file omits.
func decodeTuning(v *viper.Viper) (Tuning, error) {
	var file struct {
		Matching Tuning `mapstructure:"matching"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return Tuning{}, err
	}
	return file.Matching, nil
}

func (h *TuningHolder) Get() Tuning {
	if h == nil {
		return DefaultTuning()
	}
	return h.current.Load().(Tuning)
}

func validateTuning(t Tuning) error {
	if t.FuzzyThreshold <= 0 || t.FuzzyThreshold > 1 {
		return errors.New("matching.fuzzyThreshold must be in (0, 1]")
	}
	if t.AIMinConfidence <= 0 || t.AIMinConfidence > 1 {
		return errors.New("matching.aiMinConfidence must be in (0, 1]")
	}
	return nil
}
