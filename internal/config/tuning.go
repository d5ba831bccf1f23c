package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxFileSize bounds the size of a tuning file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// TuningConfig represents the root configuration for classifier tuning.
// Every field is optional; the Get* methods supply the default of any
// field the file leaves out, so partial configs are safe.
type TuningConfig struct {
	// Rig geometry
	Sensors     *int `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	ImageWidth  *int `json:"image_width,omitempty" yaml:"image_width,omitempty"`
	ImageHeight *int `json:"image_height,omitempty" yaml:"image_height,omitempty"`
	Buckets     *int `json:"buckets,omitempty" yaml:"buckets,omitempty"`

	// Training
	Mode            *string  `json:"mode,omitempty" yaml:"mode,omitempty"` // "rotation" or "translation"
	FOVDegrees      *float64 `json:"fov_degrees,omitempty" yaml:"fov_degrees,omitempty"`
	HistogramBins   *int     `json:"histogram_bins,omitempty" yaml:"histogram_bins,omitempty"`
	PeakFraction    *float64 `json:"peak_fraction,omitempty" yaml:"peak_fraction,omitempty"`
	PeerFraction    *float64 `json:"peer_fraction,omitempty" yaml:"peer_fraction,omitempty"`
	MinVotes        *int     `json:"min_votes,omitempty" yaml:"min_votes,omitempty"`
	FinalizeWorkers *int     `json:"finalize_workers,omitempty" yaml:"finalize_workers,omitempty"`

	// Sparse table
	SparseEnabled   *bool `json:"sparse_enabled,omitempty" yaml:"sparse_enabled,omitempty"`
	SparseThreshold *int  `json:"sparse_threshold,omitempty" yaml:"sparse_threshold,omitempty"`

	// Robust estimation
	RansacRuns    *int    `json:"ransac_runs,omitempty" yaml:"ransac_runs,omitempty"`
	RansacInliers *int    `json:"ransac_inliers,omitempty" yaml:"ransac_inliers,omitempty"`
	Seed          *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Persistence
	SnapshotInterval *string `json:"snapshot_interval,omitempty" yaml:"snapshot_interval,omitempty"` // duration string like "5m"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// value its getter would fall back to.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		Sensors:          ptrInt(e.GetSensors()),
		ImageWidth:       ptrInt(e.GetImageWidth()),
		ImageHeight:      ptrInt(e.GetImageHeight()),
		Buckets:          ptrInt(e.GetBuckets()),
		Mode:             ptrString(e.GetMode()),
		FOVDegrees:       ptrFloat64(e.GetFOVDegrees()),
		HistogramBins:    ptrInt(e.GetHistogramBins()),
		PeakFraction:     ptrFloat64(e.GetPeakFraction()),
		PeerFraction:     ptrFloat64(e.GetPeerFraction()),
		MinVotes:         ptrInt(e.GetMinVotes()),
		FinalizeWorkers:  ptrInt(e.GetFinalizeWorkers()),
		SparseEnabled:    ptrBool(e.GetSparseEnabled()),
		SparseThreshold:  ptrInt(e.GetSparseThreshold()),
		RansacRuns:       ptrInt(e.GetRansacRuns()),
		RansacInliers:    ptrInt(e.GetRansacInliers()),
		Seed:             ptrUint64(e.GetSeed()),
		SnapshotInterval: ptrString(e.GetSnapshotInterval().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON (.json) or YAML
// (.yaml, .yml) file no larger than 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
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
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/rig/classifier/
		"../../../../" + DefaultConfigPath, // deeper packages
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
	positive := []struct {
		name string
		v    *int
	}{
		{"sensors", c.Sensors},
		{"image_width", c.ImageWidth},
		{"image_height", c.ImageHeight},
		{"buckets", c.Buckets},
		{"histogram_bins", c.HistogramBins},
		{"finalize_workers", c.FinalizeWorkers},
		{"ransac_runs", c.RansacRuns},
		{"ransac_inliers", c.RansacInliers},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}

	if c.Mode != nil && *c.Mode != "" {
		switch *c.Mode {
		case "rotation", "rot", "translation", "trans":
		default:
			return fmt.Errorf("mode must be rotation or translation, got %q", *c.Mode)
		}
	}

	if c.FOVDegrees != nil && (*c.FOVDegrees <= 0 || *c.FOVDegrees > 360) {
		return fmt.Errorf("fov_degrees must be in (0, 360], got %f", *c.FOVDegrees)
	}

	for name, v := range map[string]*float64{"peak_fraction": c.PeakFraction, "peer_fraction": c.PeerFraction} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.MinVotes != nil && *c.MinVotes < 0 {
		return fmt.Errorf("min_votes must be non-negative, got %d", *c.MinVotes)
	}
	if c.SparseThreshold != nil && (*c.SparseThreshold < 0 || *c.SparseThreshold > 1000) {
		return fmt.Errorf("sparse_threshold must be a per-mille value in [0, 1000], got %d", *c.SparseThreshold)
	}

	if c.SnapshotInterval != nil && *c.SnapshotInterval != "" {
		if _, err := time.ParseDuration(*c.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid snapshot_interval '%s': %w", *c.SnapshotInterval, err)
		}
	}

	return nil
}

// GetSensors returns the sensors value or the default.
func (c *TuningConfig) GetSensors() int {
	if c.Sensors == nil {
		return 2
	}
	return *c.Sensors
}

// GetImageWidth returns the image_width value or the default.
func (c *TuningConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return 640
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image_height value or the default.
func (c *TuningConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return 480
	}
	return *c.ImageHeight
}

// GetBuckets returns the buckets value or the default.
func (c *TuningConfig) GetBuckets() int {
	if c.Buckets == nil {
		return 4
	}
	return *c.Buckets
}

// GetMode returns the mode value or the default.
func (c *TuningConfig) GetMode() string {
	if c.Mode == nil || *c.Mode == "" {
		return "rotation"
	}
	return *c.Mode
}

// GetFOVDegrees returns the fov_degrees value or the default.
func (c *TuningConfig) GetFOVDegrees() float64 {
	if c.FOVDegrees == nil {
		return 120
	}
	return *c.FOVDegrees
}

// GetHistogramBins returns the histogram_bins value or the default.
func (c *TuningConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return 200
	}
	return *c.HistogramBins
}

// GetPeakFraction returns the peak_fraction value or the default.
func (c *TuningConfig) GetPeakFraction() float64 {
	if c.PeakFraction == nil {
		return 0.10
	}
	return *c.PeakFraction
}

// GetPeerFraction returns the peer_fraction value or the default.
func (c *TuningConfig) GetPeerFraction() float64 {
	if c.PeerFraction == nil {
		return 0.02
	}
	return *c.PeerFraction
}

// GetMinVotes returns the min_votes value or the default.
func (c *TuningConfig) GetMinVotes() int {
	if c.MinVotes == nil {
		return 100
	}
	return *c.MinVotes
}

// GetFinalizeWorkers returns the finalize_workers value or the default.
func (c *TuningConfig) GetFinalizeWorkers() int {
	if c.FinalizeWorkers == nil {
		return 1
	}
	return *c.FinalizeWorkers
}

// GetSparseEnabled returns the sparse_enabled value or the default.
func (c *TuningConfig) GetSparseEnabled() bool {
	if c.SparseEnabled == nil {
		return false // default: dense table only
	}
	return *c.SparseEnabled
}

// GetSparseThreshold returns the sparse_threshold value or the default.
func (c *TuningConfig) GetSparseThreshold() int {
	if c.SparseThreshold == nil {
		return 20
	}
	return *c.SparseThreshold
}

// GetRansacRuns returns the ransac_runs value or the default.
func (c *TuningConfig) GetRansacRuns() int {
	if c.RansacRuns == nil {
		return 100
	}
	return *c.RansacRuns
}

// GetRansacInliers returns the ransac_inliers value or the default.
func (c *TuningConfig) GetRansacInliers() int {
	if c.RansacInliers == nil {
		return 5
	}
	return *c.RansacInliers
}

// GetSeed returns the seed value or the default.
func (c *TuningConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetSnapshotInterval parses and returns the SnapshotInterval as a time.Duration.
func (c *TuningConfig) GetSnapshotInterval() time.Duration {
	if c.SnapshotInterval == nil || *c.SnapshotInterval == "" {
		return 5 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.SnapshotInterval)
	if err != nil {
		return 5 * time.Minute // default on parse error
	}
	return d
}
