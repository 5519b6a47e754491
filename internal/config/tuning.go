package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// All fields are optional in the JSON file; the Get* accessors supply
// calibrated defaults for anything omitted, so partial configs are safe.
type TuningConfig struct {
	// Frame geometry
	Channels        *int `json:"channels,omitempty"`
	ChirpsPerFrame  *int `json:"chirps_per_frame,omitempty"`
	SamplesPerChirp *int `json:"samples_per_chirp,omitempty"`

	// Acquisition params
	ReadTimeout            *string  `json:"read_timeout,omitempty"` // duration string like "250ms"
	MaxConsecutiveTimeouts *int     `json:"max_consecutive_timeouts,omitempty"`
	FrameRateHz            *float64 `json:"frame_rate_hz,omitempty"`

	// Range processor params
	BackgroundAlpha *float64 `json:"background_alpha,omitempty"`
	WarmupFrames    *int     `json:"warmup_frames,omitempty"`
	ChannelCombine  *string  `json:"channel_combine,omitempty"` // "sum" or "max"
	MaxRangeM       *float64 `json:"max_range_m,omitempty"`
	DeadZoneM       *float64 `json:"dead_zone_m,omitempty"`

	// Detector params
	NoiseMultiplier *float64 `json:"noise_multiplier,omitempty"`
	NoiseQuantile   *float64 `json:"noise_quantile,omitempty"`
	MinThreshold    *float64 `json:"min_threshold,omitempty"`
	WarmupBoost     *float64 `json:"warmup_boost,omitempty"`

	// Tracker params
	MaxTracks         *int     `json:"max_tracks,omitempty"`
	HitsToConfirm     *int     `json:"hits_to_confirm,omitempty"`
	MaxCoastingMisses *int     `json:"max_coasting_misses,omitempty"`
	GatingDistanceM   *float64 `json:"gating_distance_m,omitempty"`
	AngleWeight       *float64 `json:"angle_weight,omitempty"`
	ProcessNoisePos   *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel   *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	Association       *string  `json:"association,omitempty"` // "greedy" or "hungarian"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Channels != nil {
		if *c.Channels < 1 || *c.Channels > 8 {
			return fmt.Errorf("channels must be between 1 and 8, got %d", *c.Channels)
		}
	}

	if c.ChirpsPerFrame != nil && *c.ChirpsPerFrame < 1 {
		return fmt.Errorf("chirps_per_frame must be at least 1, got %d", *c.ChirpsPerFrame)
	}

	// The per-chirp FFT needs a power-of-two length.
	if c.SamplesPerChirp != nil {
		n := *c.SamplesPerChirp
		if n < 8 || n&(n-1) != 0 {
			return fmt.Errorf("samples_per_chirp must be a power of two >= 8, got %d", n)
		}
	}

	// Validate ReadTimeout can be parsed if set
	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		if _, err := time.ParseDuration(*c.ReadTimeout); err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
	}

	if c.MaxConsecutiveTimeouts != nil && *c.MaxConsecutiveTimeouts < 1 {
		return fmt.Errorf("max_consecutive_timeouts must be at least 1, got %d", *c.MaxConsecutiveTimeouts)
	}

	if c.FrameRateHz != nil && *c.FrameRateHz <= 0 {
		return fmt.Errorf("frame_rate_hz must be positive, got %f", *c.FrameRateHz)
	}

	if c.BackgroundAlpha != nil {
		if *c.BackgroundAlpha <= 0 || *c.BackgroundAlpha >= 1 {
			return fmt.Errorf("background_alpha must be between 0 and 1 exclusive, got %f", *c.BackgroundAlpha)
		}
	}

	if c.WarmupFrames != nil && *c.WarmupFrames < 0 {
		return fmt.Errorf("warmup_frames must be non-negative, got %d", *c.WarmupFrames)
	}

	if c.ChannelCombine != nil {
		if m := *c.ChannelCombine; m != "sum" && m != "max" {
			return fmt.Errorf("channel_combine must be 'sum' or 'max', got '%s'", m)
		}
	}

	if c.MaxRangeM != nil && *c.MaxRangeM <= 0 {
		return fmt.Errorf("max_range_m must be positive, got %f", *c.MaxRangeM)
	}

	if c.DeadZoneM != nil && *c.DeadZoneM < 0 {
		return fmt.Errorf("dead_zone_m must be non-negative, got %f", *c.DeadZoneM)
	}

	if c.NoiseQuantile != nil {
		if *c.NoiseQuantile < 0 || *c.NoiseQuantile >= 1 {
			return fmt.Errorf("noise_quantile must be between 0 and 1, got %f", *c.NoiseQuantile)
		}
	}

	if c.NoiseMultiplier != nil && *c.NoiseMultiplier <= 0 {
		return fmt.Errorf("noise_multiplier must be positive, got %f", *c.NoiseMultiplier)
	}

	if c.WarmupBoost != nil && *c.WarmupBoost < 1 {
		return fmt.Errorf("warmup_boost must be at least 1, got %f", *c.WarmupBoost)
	}

	if c.MaxTracks != nil && *c.MaxTracks < 1 {
		return fmt.Errorf("max_tracks must be at least 1, got %d", *c.MaxTracks)
	}

	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be at least 1, got %d", *c.HitsToConfirm)
	}

	if c.MaxCoastingMisses != nil && *c.MaxCoastingMisses < 0 {
		return fmt.Errorf("max_coasting_misses must be non-negative, got %d", *c.MaxCoastingMisses)
	}

	if c.GatingDistanceM != nil && *c.GatingDistanceM <= 0 {
		return fmt.Errorf("gating_distance_m must be positive, got %f", *c.GatingDistanceM)
	}

	if c.AngleWeight != nil && *c.AngleWeight < 0 {
		return fmt.Errorf("angle_weight must be non-negative, got %f", *c.AngleWeight)
	}

	if c.Association != nil {
		if a := *c.Association; a != "greedy" && a != "hungarian" {
			return fmt.Errorf("association must be 'greedy' or 'hungarian', got '%s'", a)
		}
	}

	return nil
}

// GetChannels returns the channels value or the default.
func (c *TuningConfig) GetChannels() int {
	if c.Channels == nil {
		return 3 // the BGT60TR13C front end has three RX antennas
	}
	return *c.Channels
}

// GetChirpsPerFrame returns the chirps_per_frame value or the default.
func (c *TuningConfig) GetChirpsPerFrame() int {
	if c.ChirpsPerFrame == nil {
		return 32
	}
	return *c.ChirpsPerFrame
}

// GetSamplesPerChirp returns the samples_per_chirp value or the default.
func (c *TuningConfig) GetSamplesPerChirp() int {
	if c.SamplesPerChirp == nil {
		return 128
	}
	return *c.SamplesPerChirp
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration.
func (c *TuningConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return 250 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return 250 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxConsecutiveTimeouts returns the max_consecutive_timeouts value or the default.
func (c *TuningConfig) GetMaxConsecutiveTimeouts() int {
	if c.MaxConsecutiveTimeouts == nil {
		return 20
	}
	return *c.MaxConsecutiveTimeouts
}

// GetFrameRateHz returns the frame_rate_hz value or the default.
func (c *TuningConfig) GetFrameRateHz() float64 {
	if c.FrameRateHz == nil {
		return 10.0
	}
	return *c.FrameRateHz
}

// GetBackgroundAlpha returns the background_alpha value or the default.
// At 10 Hz the default settles the clutter estimate in roughly a second
// while still letting a person who stops dead fade into the background.
func (c *TuningConfig) GetBackgroundAlpha() float64 {
	if c.BackgroundAlpha == nil {
		return 0.9
	}
	return *c.BackgroundAlpha
}

// GetWarmupFrames returns the warmup_frames value or the default.
func (c *TuningConfig) GetWarmupFrames() int {
	if c.WarmupFrames == nil {
		return 15
	}
	return *c.WarmupFrames
}

// GetChannelCombine returns the channel_combine value or the default.
func (c *TuningConfig) GetChannelCombine() string {
	if c.ChannelCombine == nil {
		return "sum"
	}
	return *c.ChannelCombine
}

// GetMaxRangeM returns the max_range_m value or the default.
func (c *TuningConfig) GetMaxRangeM() float64 {
	if c.MaxRangeM == nil {
		return 12.0
	}
	return *c.MaxRangeM
}

// GetDeadZoneM returns the dead_zone_m value or the default.
func (c *TuningConfig) GetDeadZoneM() float64 {
	if c.DeadZoneM == nil {
		return 0.95 // TX/RX leakage swamps everything closer than this
	}
	return *c.DeadZoneM
}

// GetNoiseMultiplier returns the noise_multiplier value or the default.
func (c *TuningConfig) GetNoiseMultiplier() float64 {
	if c.NoiseMultiplier == nil {
		return 3.0
	}
	return *c.NoiseMultiplier
}

// GetNoiseQuantile returns the noise_quantile value or the default.
func (c *TuningConfig) GetNoiseQuantile() float64 {
	if c.NoiseQuantile == nil {
		return 0.75
	}
	return *c.NoiseQuantile
}

// GetMinThreshold returns the min_threshold value or the default.
func (c *TuningConfig) GetMinThreshold() float64 {
	if c.MinThreshold == nil {
		return 0.05
	}
	return *c.MinThreshold
}

// GetWarmupBoost returns the warmup_boost value or the default.
// The boost raises the detection threshold while the background
// estimate is still settling, suppressing startup false positives.
func (c *TuningConfig) GetWarmupBoost() float64 {
	if c.WarmupBoost == nil {
		return 3.0
	}
	return *c.WarmupBoost
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 16
	}
	return *c.MaxTracks
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxCoastingMisses returns the max_coasting_misses value or the default.
func (c *TuningConfig) GetMaxCoastingMisses() int {
	if c.MaxCoastingMisses == nil {
		return 5
	}
	return *c.MaxCoastingMisses
}

// GetGatingDistanceM returns the gating_distance_m value or the default.
func (c *TuningConfig) GetGatingDistanceM() float64 {
	if c.GatingDistanceM == nil {
		return 0.6
	}
	return *c.GatingDistanceM
}

// GetAngleWeight returns the angle_weight value or the default.
// The weight converts degrees of bearing difference into metres of
// association cost.
func (c *TuningConfig) GetAngleWeight() float64 {
	if c.AngleWeight == nil {
		return 0.02
	}
	return *c.AngleWeight
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 0.05
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 0.2
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 0.1
	}
	return *c.MeasurementNoise
}

// GetAssociation returns the association value or the default.
func (c *TuningConfig) GetAssociation() string {
	if c.Association == nil {
		return "greedy"
	}
	return *c.Association
}
