package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.FPS == nil || *cfg.FPS != 30 {
		t.Errorf("Expected FPS 30, got %v", cfg.FPS)
	}
	if cfg.DropoutFrames == nil || *cfg.DropoutFrames != 15 {
		t.Errorf("Expected DropoutFrames 15, got %v", cfg.DropoutFrames)
	}
	if cfg.DropoutTimeout == nil || *cfg.DropoutTimeout != "500ms" {
		t.Errorf("Expected DropoutTimeout '500ms', got %v", cfg.DropoutTimeout)
	}
	if cfg.BounceStrategy == nil || *cfg.BounceStrategy != BounceVelocityInversion {
		t.Errorf("Expected BounceStrategy %q, got %v", BounceVelocityInversion, cfg.BounceStrategy)
	}

	// Test getter methods
	if cfg.GetGateMaxDistancePx() != 120 {
		t.Errorf("GetGateMaxDistancePx() = %f, want 120", cfg.GetGateMaxDistancePx())
	}
	if cfg.GetSpeedCeilingKmph() != 160 {
		t.Errorf("GetSpeedCeilingKmph() = %f, want 160", cfg.GetSpeedCeilingKmph())
	}
	if cfg.GetHistoryWindow() != 5 {
		t.Errorf("GetHistoryWindow() = %d, want 5", cfg.GetHistoryWindow())
	}
	if cfg.GetDropoutMode() != DropoutModeFrames {
		t.Errorf("GetDropoutMode() = %q, want %q", cfg.GetDropoutMode(), DropoutModeFrames)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultTuningConfig().Validate() = %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "fps": 60,
  "gate_max_distance_px": 80,
  "dropout_mode": "elapsed",
  "dropout_timeout": "750ms",
  "speed_smoothing_alpha": 0.5,
  "bounce_strategy": "speed_drop"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetFPS() != 60 {
		t.Errorf("Expected FPS 60, got %f", cfg.GetFPS())
	}
	if cfg.GetGateMaxDistancePx() != 80 {
		t.Errorf("Expected GateMaxDistancePx 80, got %f", cfg.GetGateMaxDistancePx())
	}
	if cfg.GetDropoutMode() != DropoutModeElapsed {
		t.Errorf("Expected DropoutMode elapsed, got %q", cfg.GetDropoutMode())
	}
	if cfg.GetDropoutTimeout() != 750*time.Millisecond {
		t.Errorf("Expected DropoutTimeout 750ms, got %v", cfg.GetDropoutTimeout())
	}
	if cfg.GetSpeedSmoothingAlpha() != 0.5 {
		t.Errorf("Expected SpeedSmoothingAlpha 0.5, got %f", cfg.GetSpeedSmoothingAlpha())
	}
	if cfg.GetBounceStrategy() != BounceSpeedDrop {
		t.Errorf("Expected BounceStrategy speed_drop, got %q", cfg.GetBounceStrategy())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "fps": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultTuningConfig(), wantErr: false},
		{name: "empty config is valid", cfg: &TuningConfig{}, wantErr: false},
		{name: "zero fps", cfg: &TuningConfig{FPS: ptrFloat64(0)}, wantErr: true},
		{name: "negative meters per pixel", cfg: &TuningConfig{MetersPerPixel: ptrFloat64(-0.01)}, wantErr: true},
		{name: "zero gate distance", cfg: &TuningConfig{GateMaxDistancePx: ptrFloat64(0)}, wantErr: true},
		{name: "unknown dropout mode", cfg: &TuningConfig{DropoutMode: ptrString("wallclock")}, wantErr: true},
		{name: "invalid dropout timeout", cfg: &TuningConfig{DropoutTimeout: ptrString("invalid")}, wantErr: true},
		{name: "negative dropout timeout", cfg: &TuningConfig{DropoutTimeout: ptrString("-1s")}, wantErr: true},
		{name: "history window too small", cfg: &TuningConfig{HistoryWindow: ptrInt(2)}, wantErr: true},
		{name: "zero min trajectory points", cfg: &TuningConfig{MinTrajectoryPoints: ptrInt(0)}, wantErr: true},
		{name: "zero measurement noise", cfg: &TuningConfig{MeasurementNoise: ptrFloat64(0)}, wantErr: true},
		{name: "negative process noise", cfg: &TuningConfig{ProcessNoiseVel: ptrFloat64(-1)}, wantErr: true},
		{name: "alpha above one", cfg: &TuningConfig{SpeedSmoothingAlpha: ptrFloat64(1.5)}, wantErr: true},
		{name: "alpha zero", cfg: &TuningConfig{SpeedSmoothingAlpha: ptrFloat64(0)}, wantErr: true},
		{name: "alpha one", cfg: &TuningConfig{SpeedSmoothingAlpha: ptrFloat64(1)}, wantErr: false},
		{name: "zero release confirm frames", cfg: &TuningConfig{ReleaseConfirmFrames: ptrInt(0)}, wantErr: true},
		{name: "unknown bounce strategy", cfg: &TuningConfig{BounceStrategy: ptrString("magic")}, wantErr: true},
		{name: "negative cooldown", cfg: &TuningConfig{BounceCooldownFrames: ptrInt(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDropoutTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{name: "one second", cfg: &TuningConfig{DropoutTimeout: ptrString("1s")}, want: time.Second},
		{name: "nil uses default", cfg: &TuningConfig{}, want: 500 * time.Millisecond},
		{name: "empty uses default", cfg: &TuningConfig{DropoutTimeout: ptrString("")}, want: 500 * time.Millisecond},
		{name: "unparseable uses default", cfg: &TuningConfig{DropoutTimeout: ptrString("soon")}, want: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDropoutTimeout(); got != tt.want {
				t.Errorf("GetDropoutTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	// The defaults file and the in-code defaults must agree.
	want := DefaultTuningConfig()
	if cfg.GetFPS() != want.GetFPS() {
		t.Errorf("fps: file %f, code %f", cfg.GetFPS(), want.GetFPS())
	}
	if math.Abs(cfg.GetMetersPerPixel()-want.GetMetersPerPixel()) > 1e-12 {
		t.Errorf("meters_per_pixel: file %g, code %g", cfg.GetMetersPerPixel(), want.GetMetersPerPixel())
	}
	if cfg.GetDropoutFrames() != want.GetDropoutFrames() {
		t.Errorf("dropout_frames: file %d, code %d", cfg.GetDropoutFrames(), want.GetDropoutFrames())
	}
	if cfg.GetInitialVelocityVariance() != want.GetInitialVelocityVariance() {
		t.Errorf("initial_velocity_variance: file %f, code %f", cfg.GetInitialVelocityVariance(), want.GetInitialVelocityVariance())
	}
	if cfg.GetProcessNoiseVel() != want.GetProcessNoiseVel() {
		t.Errorf("process_noise_vel: file %f, code %f", cfg.GetProcessNoiseVel(), want.GetProcessNoiseVel())
	}
	if cfg.GetReleaseThresholdKmph() != want.GetReleaseThresholdKmph() {
		t.Errorf("release_threshold_kmph: file %f, code %f", cfg.GetReleaseThresholdKmph(), want.GetReleaseThresholdKmph())
	}
	if cfg.GetBounceCooldownFrames() != want.GetBounceCooldownFrames() {
		t.Errorf("bounce_cooldown_frames: file %d, code %d", cfg.GetBounceCooldownFrames(), want.GetBounceCooldownFrames())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetFPS() != 50 {
		t.Errorf("Expected 50, got %f", cfg.GetFPS())
	}
	if cfg.GetBounceStrategy() != BouncePositionPeak {
		t.Errorf("Expected position_peak, got %q", cfg.GetBounceStrategy())
	}
	if cfg.GetReleaseConfirmFrames() != 3 {
		t.Errorf("Expected 3, got %d", cfg.GetReleaseConfirmFrames())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetGateMaxDistancePx() != 120 {
		t.Errorf("Expected 120, got %f", cfg.GetGateMaxDistancePx())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the gate; everything else should keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"gate_max_distance_px": 64}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetGateMaxDistancePx() != 64 {
		t.Errorf("Expected overridden GateMaxDistancePx 64, got %f", cfg.GetGateMaxDistancePx())
	}
	if cfg.GetDropoutFrames() != 15 {
		t.Errorf("Expected default DropoutFrames 15, got %d", cfg.GetDropoutFrames())
	}
	if cfg.GetSpeedMaxDeltaKmph() != 18 {
		t.Errorf("Expected default SpeedMaxDeltaKmph 18, got %f", cfg.GetSpeedMaxDeltaKmph())
	}
	if cfg.GetDropoutTimeout() != 500*time.Millisecond {
		t.Errorf("Expected default DropoutTimeout 500ms, got %v", cfg.GetDropoutTimeout())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")

	if err := os.WriteFile(configPath, []byte(`{"bounce_strategy": "guess"}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected validation error, got nil")
	}
}

func TestValidateReportsFirstInvalidFieldInOrder(t *testing.T) {
	c := EmptyTuningConfig()
	c.MeasurementNoise = ptrFloat64(0)
	c.SpeedCeilingKmph = ptrFloat64(-5)
	c.ProcessNoisePos = ptrFloat64(-1)
	c.BounceFlatVyPx = ptrFloat64(-1)

	want := "measurement_noise must be positive, got 0.000000"
	for i := 0; i < 50; i++ {
		err := c.Validate()
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if err.Error() != want {
			t.Fatalf("attempt %d: got %q, want %q", i, err.Error(), want)
		}
	}

	c.MeasurementNoise = nil
	c.SpeedCeilingKmph = nil
	if err := c.Validate(); err == nil || err.Error() != "process_noise_pos must be non-negative, got -1.000000" {
		t.Errorf("got %v, want process_noise_pos error", err)
	}
}
