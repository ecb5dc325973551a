package config

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CropParams holds per-crop agronomic baselines used for degraded-mode
// yield synthesis and verdict sanity checks.
type CropParams struct {
	// BaseYield is the expected yield in quintals per acre under normal
	// conditions.
	BaseYield float64 `mapstructure:"baseYield"`
}

// CropConfig holds all crop parameters plus the bands applied to every crop.
type CropConfig struct {
	// SeasonalFactorMin/Max bound the randomized scaling applied to
	// synthesized yield estimates.
	SeasonalFactorMin float64 `mapstructure:"seasonalFactorMin"`
	SeasonalFactorMax float64 `mapstructure:"seasonalFactorMax"`

	// DamageDiscrepancyBand is the tolerated relative difference between
	// claimed and predicted damage before a claim is flagged.
	DamageDiscrepancyBand float64 `mapstructure:"damageDiscrepancyBand"`

	// FraudScoreThreshold rejects claims at or above this score.
	FraudScoreThreshold float64 `mapstructure:"fraudScoreThreshold"`

	Crops map[string]CropParams `mapstructure:"crops"`
}

// Params returns the parameters for a crop, falling back to the default
// entry when the crop is unknown.
func (c CropConfig) Params(cropType string) CropParams {
	key := strings.ToLower(strings.TrimSpace(cropType))
	if p, ok := c.Crops[key]; ok {
		return p
	}
	if p, ok := c.Crops["default"]; ok {
		return p
	}
	return CropParams{BaseYield: 15}
}

func DefaultCropConfig() CropConfig {
	return CropConfig{
		SeasonalFactorMin:     0.85,
		SeasonalFactorMax:     1.15,
		DamageDiscrepancyBand: 0.5,
		FraudScoreThreshold:   0.5,
		Crops: map[string]CropParams{
			"rice":      {BaseYield: 22},
			"wheat":     {BaseYield: 18},
			"cotton":    {BaseYield: 8},
			"sugarcane": {BaseYield: 320},
			"maize":     {BaseYield: 20},
			"default":   {BaseYield: 15},
		},
	}
}

// CropConfigHolder serves the current crop configuration and swaps it
// atomically when the backing file changes.
type CropConfigHolder struct {
	current atomic.Value // holds CropConfig
}

// NewCropConfigHolder reads crops.yml when present and watches it for
// changes. Missing or malformed files fall back to compiled-in defaults.
func NewCropConfigHolder() (*CropConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("crops")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/claimsd")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLAIMSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &CropConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultCropConfig())
		return holder, nil
	}

	cfg, err := unmarshalCropConfig(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(in fsnotify.Event) {
		next, err := unmarshalCropConfig(v)
		if err != nil {
			log.Printf("crop config reload failed: %v", err)
			return
		}
		holder.current.Store(next)
	})
	v.WatchConfig()

	return holder, nil
}

func unmarshalCropConfig(v *viper.Viper) (CropConfig, error) {
	cfg := DefaultCropConfig()
	if err := v.UnmarshalKey("crop", &cfg); err != nil {
		return CropConfig{}, err
	}
	if cfg.SeasonalFactorMin <= 0 || cfg.SeasonalFactorMax < cfg.SeasonalFactorMin {
		defaults := DefaultCropConfig()
		cfg.SeasonalFactorMin = defaults.SeasonalFactorMin
		cfg.SeasonalFactorMax = defaults.SeasonalFactorMax
	}
	if cfg.DamageDiscrepancyBand <= 0 {
		cfg.DamageDiscrepancyBand = DefaultCropConfig().DamageDiscrepancyBand
	}
	if cfg.FraudScoreThreshold <= 0 {
		cfg.FraudScoreThreshold = DefaultCropConfig().FraudScoreThreshold
	}
	return cfg, nil
}

// Current returns the active crop configuration.
func (h *CropConfigHolder) Current() CropConfig {
	if h == nil {
		return DefaultCropConfig()
	}
	if cfg, ok := h.current.Load().(CropConfig); ok {
		return cfg
	}
	return DefaultCropConfig()
}
