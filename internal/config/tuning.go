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

// Dropout modes.
const (
	DropoutModeFrames  = "frames"
	DropoutModeElapsed = "elapsed"
)

// Bounce strategy names.
const (
	BounceVelocityInversion = "velocity_inversion"
	BouncePositionPeak      = "position_peak"
	BounceSpeedDrop         = "speed_drop"
)

// TuningConfig represents the root configuration for tracking parameters.
// Every field is optional; the Get* accessors supply the default when a
// field is absent, so partial files are safe.
type TuningConfig struct {
	// Camera and calibration
	FPS               *float64 `json:"fps,omitempty"`
	MetersPerPixel    *float64 `json:"meters_per_pixel,omitempty"`
	PerspectiveScale  *float64 `json:"perspective_scale,omitempty"`
	PerspectiveGain   *float64 `json:"perspective_gain,omitempty"`
	FrameHeight       *int     `json:"frame_height,omitempty"`
	PitchLengthMeters *float64 `json:"pitch_length_meters,omitempty"`

	// Association and lifecycle
	GateMaxDistancePx   *float64 `json:"gate_max_distance_px,omitempty"`
	DropoutMode         *string  `json:"dropout_mode,omitempty"`
	DropoutFrames       *int     `json:"dropout_frames,omitempty"`
	DropoutTimeout      *string  `json:"dropout_timeout,omitempty"` // duration string like "500ms"
	HistoryWindow       *int     `json:"history_window,omitempty"`
	MinTrajectoryPoints *int     `json:"min_trajectory_points,omitempty"`

	// Estimator
	InitialPositionVariance *float64 `json:"initial_position_variance,omitempty"`
	InitialVelocityVariance *float64 `json:"initial_velocity_variance,omitempty"`
	ProcessNoisePos         *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel         *float64 `json:"process_noise_vel,omitempty"`
	MeasurementNoise        *float64 `json:"measurement_noise,omitempty"`
	MinDeterminant          *float64 `json:"min_determinant,omitempty"`

	// Speed pipeline
	SpeedMaxDeltaKmph    *float64 `json:"speed_max_delta_kmph,omitempty"`
	SpeedSmoothingAlpha  *float64 `json:"speed_smoothing_alpha,omitempty"`
	SpeedCeilingKmph     *float64 `json:"speed_ceiling_kmph,omitempty"`
	ReleaseThresholdKmph *float64 `json:"release_threshold_kmph,omitempty"`
	ReleaseConfirmFrames *int     `json:"release_confirm_frames,omitempty"`

	// Bounce detection
	BounceStrategy       *string  `json:"bounce_strategy,omitempty"`
	BounceCooldownFrames *int     `json:"bounce_cooldown_frames,omitempty"`
	BounceSpeedDropPx    *float64 `json:"bounce_speed_drop_px,omitempty"`
	BounceFlatVyPx       *float64 `json:"bounce_flat_vy_px,omitempty"`
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

// DefaultTuningConfig returns a TuningConfig with every field populated
// with its default value. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		FPS:                     ptrFloat64(c.GetFPS()),
		MetersPerPixel:          ptrFloat64(c.GetMetersPerPixel()),
		PerspectiveScale:        ptrFloat64(c.GetPerspectiveScale()),
		PerspectiveGain:         ptrFloat64(c.GetPerspectiveGain()),
		FrameHeight:             ptrInt(c.GetFrameHeight()),
		PitchLengthMeters:       ptrFloat64(c.GetPitchLengthMeters()),
		GateMaxDistancePx:       ptrFloat64(c.GetGateMaxDistancePx()),
		DropoutMode:             ptrString(c.GetDropoutMode()),
		DropoutFrames:           ptrInt(c.GetDropoutFrames()),
		DropoutTimeout:          ptrString(c.GetDropoutTimeout().String()),
		HistoryWindow:           ptrInt(c.GetHistoryWindow()),
		MinTrajectoryPoints:     ptrInt(c.GetMinTrajectoryPoints()),
		InitialPositionVariance: ptrFloat64(c.GetInitialPositionVariance()),
		InitialVelocityVariance: ptrFloat64(c.GetInitialVelocityVariance()),
		ProcessNoisePos:         ptrFloat64(c.GetProcessNoisePos()),
		ProcessNoiseVel:         ptrFloat64(c.GetProcessNoiseVel()),
		MeasurementNoise:        ptrFloat64(c.GetMeasurementNoise()),
		MinDeterminant:          ptrFloat64(c.GetMinDeterminant()),
		SpeedMaxDeltaKmph:       ptrFloat64(c.GetSpeedMaxDeltaKmph()),
		SpeedSmoothingAlpha:     ptrFloat64(c.GetSpeedSmoothingAlpha()),
		SpeedCeilingKmph:        ptrFloat64(c.GetSpeedCeilingKmph()),
		ReleaseThresholdKmph:    ptrFloat64(c.GetReleaseThresholdKmph()),
		ReleaseConfirmFrames:    ptrInt(c.GetReleaseConfirmFrames()),
		BounceStrategy:          ptrString(c.GetBounceStrategy()),
		BounceCooldownFrames:    ptrInt(c.GetBounceCooldownFrames()),
		BounceSpeedDropPx:       ptrFloat64(c.GetBounceSpeedDropPx()),
		BounceFlatVyPx:          ptrFloat64(c.GetBounceFlatVyPx()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
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
	if c.FPS != nil && *c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %f", *c.FPS)
	}
	if c.MetersPerPixel != nil && *c.MetersPerPixel <= 0 {
		return fmt.Errorf("meters_per_pixel must be positive, got %f", *c.MetersPerPixel)
	}
	if c.PerspectiveScale != nil && *c.PerspectiveScale <= 0 {
		return fmt.Errorf("perspective_scale must be positive, got %f", *c.PerspectiveScale)
	}
	if c.FrameHeight != nil && *c.FrameHeight < 0 {
		return fmt.Errorf("frame_height must be non-negative, got %d", *c.FrameHeight)
	}
	if c.GateMaxDistancePx != nil && *c.GateMaxDistancePx <= 0 {
		return fmt.Errorf("gate_max_distance_px must be positive, got %f", *c.GateMaxDistancePx)
	}
	if c.DropoutMode != nil {
		switch *c.DropoutMode {
		case DropoutModeFrames, DropoutModeElapsed:
		default:
			return fmt.Errorf("dropout_mode must be %q or %q, got %q", DropoutModeFrames, DropoutModeElapsed, *c.DropoutMode)
		}
	}
	if c.DropoutFrames != nil && *c.DropoutFrames < 0 {
		return fmt.Errorf("dropout_frames must be non-negative, got %d", *c.DropoutFrames)
	}
	if c.DropoutTimeout != nil && *c.DropoutTimeout != "" {
		d, err := time.ParseDuration(*c.DropoutTimeout)
		if err != nil {
			return fmt.Errorf("invalid dropout_timeout '%s': %w", *c.DropoutTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("dropout_timeout must be positive, got %s", d)
		}
	}
	if c.HistoryWindow != nil && *c.HistoryWindow < 3 {
		return fmt.Errorf("history_window must be at least 3, got %d", *c.HistoryWindow)
	}
	if c.MinTrajectoryPoints != nil && *c.MinTrajectoryPoints < 1 {
		return fmt.Errorf("min_trajectory_points must be at least 1, got %d", *c.MinTrajectoryPoints)
	}
	positive := []struct {
		name string
		v    *float64
	}{
		{"initial_position_variance", c.InitialPositionVariance},
		{"initial_velocity_variance", c.InitialVelocityVariance},
		{"measurement_noise", c.MeasurementNoise},
		{"min_determinant", c.MinDeterminant},
		{"speed_max_delta_kmph", c.SpeedMaxDeltaKmph},
		{"speed_ceiling_kmph", c.SpeedCeilingKmph},
	}
	for _, f := range positive {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", f.name, *f.v)
		}
	}
	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"process_noise_pos", c.ProcessNoisePos},
		{"process_noise_vel", c.ProcessNoiseVel},
		{"release_threshold_kmph", c.ReleaseThresholdKmph},
		{"bounce_speed_drop_px", c.BounceSpeedDropPx},
		{"bounce_flat_vy_px", c.BounceFlatVyPx},
		{"perspective_gain", c.PerspectiveGain},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}
	if c.SpeedSmoothingAlpha != nil {
		if *c.SpeedSmoothingAlpha <= 0 || *c.SpeedSmoothingAlpha > 1 {
			return fmt.Errorf("speed_smoothing_alpha must be in (0, 1], got %f", *c.SpeedSmoothingAlpha)
		}
	}
	if c.ReleaseConfirmFrames != nil && *c.ReleaseConfirmFrames < 1 {
		return fmt.Errorf("release_confirm_frames must be at least 1, got %d", *c.ReleaseConfirmFrames)
	}
	if c.BounceStrategy != nil {
		switch *c.BounceStrategy {
		case BounceVelocityInversion, BouncePositionPeak, BounceSpeedDrop:
		default:
			return fmt.Errorf("unknown bounce_strategy %q", *c.BounceStrategy)
		}
	}
	if c.BounceCooldownFrames != nil && *c.BounceCooldownFrames < 0 {
		return fmt.Errorf("bounce_cooldown_frames must be non-negative, got %d", *c.BounceCooldownFrames)
	}
	return nil
}

// GetFPS returns the fps value or the default.
func (c *TuningConfig) GetFPS() float64 {
	if c.FPS == nil {
		return 30
	}
	return *c.FPS
}

// GetMetersPerPixel returns the meters_per_pixel value or the default.
func (c *TuningConfig) GetMetersPerPixel() float64 {
	if c.MetersPerPixel == nil {
		return 20.12 / 520 // pitch length over its visible pixel span
	}
	return *c.MetersPerPixel
}

// GetPerspectiveScale returns the perspective_scale value or the default.
func (c *TuningConfig) GetPerspectiveScale() float64 {
	if c.PerspectiveScale == nil {
		return 1.0
	}
	return *c.PerspectiveScale
}

// GetPerspectiveGain returns the perspective_gain value or the default.
func (c *TuningConfig) GetPerspectiveGain() float64 {
	if c.PerspectiveGain == nil {
		return 0
	}
	return *c.PerspectiveGain
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 720
	}
	return *c.FrameHeight
}

// GetPitchLengthMeters returns the pitch_length_meters value or the default.
func (c *TuningConfig) GetPitchLengthMeters() float64 {
	if c.PitchLengthMeters == nil {
		return 20.12
	}
	return *c.PitchLengthMeters
}

// GetGateMaxDistancePx returns the gate_max_distance_px value or the default.
func (c *TuningConfig) GetGateMaxDistancePx() float64 {
	if c.GateMaxDistancePx == nil {
		return 120
	}
	return *c.GateMaxDistancePx
}

// GetDropoutMode returns the dropout_mode value or the default.
func (c *TuningConfig) GetDropoutMode() string {
	if c.DropoutMode == nil || *c.DropoutMode == "" {
		return DropoutModeFrames
	}
	return *c.DropoutMode
}

// GetDropoutFrames returns the dropout_frames value or the default.
func (c *TuningConfig) GetDropoutFrames() int {
	if c.DropoutFrames == nil {
		return 15
	}
	return *c.DropoutFrames
}

// GetDropoutTimeout parses and returns the DropoutTimeout as a time.Duration.
func (c *TuningConfig) GetDropoutTimeout() time.Duration {
	if c.DropoutTimeout == nil || *c.DropoutTimeout == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.DropoutTimeout)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetHistoryWindow returns the history_window value or the default.
func (c *TuningConfig) GetHistoryWindow() int {
	if c.HistoryWindow == nil {
		return 5
	}
	return *c.HistoryWindow
}

// GetMinTrajectoryPoints returns the min_trajectory_points value or the default.
func (c *TuningConfig) GetMinTrajectoryPoints() int {
	if c.MinTrajectoryPoints == nil {
		return 1
	}
	return *c.MinTrajectoryPoints
}

// GetInitialPositionVariance returns the initial_position_variance value or the default.
func (c *TuningConfig) GetInitialPositionVariance() float64 {
	if c.InitialPositionVariance == nil {
		return 500
	}
	return *c.InitialPositionVariance
}

// GetInitialVelocityVariance returns the initial_velocity_variance value or the default.
func (c *TuningConfig) GetInitialVelocityVariance() float64 {
	if c.InitialVelocityVariance == nil {
		return 250000 // (500 px/s)²
	}
	return *c.InitialVelocityVariance
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 0.1
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 2500
	}
	return *c.ProcessNoiseVel
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 10
	}
	return *c.MeasurementNoise
}

// GetMinDeterminant returns the min_determinant value or the default.
func (c *TuningConfig) GetMinDeterminant() float64 {
	if c.MinDeterminant == nil {
		return 1e-6
	}
	return *c.MinDeterminant
}

// GetSpeedMaxDeltaKmph returns the speed_max_delta_kmph value or the default.
func (c *TuningConfig) GetSpeedMaxDeltaKmph() float64 {
	if c.SpeedMaxDeltaKmph == nil {
		return 18
	}
	return *c.SpeedMaxDeltaKmph
}

// GetSpeedSmoothingAlpha returns the speed_smoothing_alpha value or the default.
func (c *TuningConfig) GetSpeedSmoothingAlpha() float64 {
	if c.SpeedSmoothingAlpha == nil {
		return 0.25
	}
	return *c.SpeedSmoothingAlpha
}

// GetSpeedCeilingKmph returns the speed_ceiling_kmph value or the default.
func (c *TuningConfig) GetSpeedCeilingKmph() float64 {
	if c.SpeedCeilingKmph == nil {
		return 160
	}
	return *c.SpeedCeilingKmph
}

// GetReleaseThresholdKmph returns the release_threshold_kmph value or the default.
func (c *TuningConfig) GetReleaseThresholdKmph() float64 {
	if c.ReleaseThresholdKmph == nil {
		return 30
	}
	return *c.ReleaseThresholdKmph
}

// GetReleaseConfirmFrames returns the release_confirm_frames value or the default.
func (c *TuningConfig) GetReleaseConfirmFrames() int {
	if c.ReleaseConfirmFrames == nil {
		return 1
	}
	return *c.ReleaseConfirmFrames
}

// GetBounceStrategy returns the bounce_strategy value or the default.
func (c *TuningConfig) GetBounceStrategy() string {
	if c.BounceStrategy == nil || *c.BounceStrategy == "" {
		return BounceVelocityInversion
	}
	return *c.BounceStrategy
}

// GetBounceCooldownFrames returns the bounce_cooldown_frames value or the default.
func (c *TuningConfig) GetBounceCooldownFrames() int {
	if c.BounceCooldownFrames == nil {
		return 3
	}
	return *c.BounceCooldownFrames
}

// GetBounceSpeedDropPx returns the bounce_speed_drop_px value or the default.
func (c *TuningConfig) GetBounceSpeedDropPx() float64 {
	if c.BounceSpeedDropPx == nil {
		return 15
	}
	return *c.BounceSpeedDropPx
}

// GetBounceFlatVyPx returns the bounce_flat_vy_px value or the default.
func (c *TuningConfig) GetBounceFlatVyPx() float64 {
	if c.BounceFlatVyPx == nil {
		return 200
	}
	return *c.BounceFlatVyPx
}
