package classifier

import (
	"fmt"
	"math"

	"github.com/banshee-data/rigmodel/internal/config"
	"github.com/banshee-data/rigmodel/internal/rig/cells"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// Config describes the rig and the training parameters of a Classifier.
type Config struct {
	Sensors int        // cameras in the rig
	Grid    cells.Grid // shared image size and cells per side
	Mode    stats.Mode // rotation or translation

	FOVDegrees      float64 // field of view behind the rotation acceptance threshold (default: 120)
	HistogramBins   int     // outlier histogram resolution (default: 200)
	PeakFraction    float64 // samples in bins at or below this share of the peak are dropped (default: 0.10)
	PeerFraction    float64 // accepted cells below this share of the table's best count are cleared (default: 0.02)
	MinVotes        int     // gap-fill confidence floor (default: 100)
	FinalizeWorkers int     // tables finalized in parallel (default: 1)

	SparseEnabled   bool // also vote every observation into a sparse table (default: false)
	SparseThreshold int  // per-mille share a candidate needs to pass the sparse filter (default: 20)

	RansacRuns    int    // RANSAC iterations (default: 100)
	RansacInliers int    // RANSAC subset size (default: 5)
	Seed          uint64 // seed of the RANSAC and balancing generator (default: 1)
}

// DefaultConfig returns a Config loaded from the canonical tuning defaults
// file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries that
// have already validated config availability.
func DefaultConfig() *Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. An unknown
// mode string falls back to rotation; TuningConfig.Validate rejects it first.
func ConfigFromTuning(cfg *config.TuningConfig) *Config {
	mode, err := stats.ParseMode(cfg.GetMode())
	if err != nil {
		mode = stats.Rotation
	}
	return &Config{
		Sensors: cfg.GetSensors(),
		Grid: cells.Grid{
			Width:  cfg.GetImageWidth(),
			Height: cfg.GetImageHeight(),
			N:      cfg.GetBuckets(),
		},
		Mode:            mode,
		FOVDegrees:      cfg.GetFOVDegrees(),
		HistogramBins:   cfg.GetHistogramBins(),
		PeakFraction:    cfg.GetPeakFraction(),
		PeerFraction:    cfg.GetPeerFraction(),
		MinVotes:        cfg.GetMinVotes(),
		FinalizeWorkers: cfg.GetFinalizeWorkers(),
		SparseEnabled:   cfg.GetSparseEnabled(),
		SparseThreshold: cfg.GetSparseThreshold(),
		RansacRuns:      cfg.GetRansacRuns(),
		RansacInliers:   cfg.GetRansacInliers(),
		Seed:            cfg.GetSeed(),
	}
}

// Validate checks if the configuration is valid.
// Returns an error if any parameter is out of acceptable range.
func (c *Config) Validate() error {
	if c.Sensors <= 0 {
		return fmt.Errorf("Sensors must be positive, got %d", c.Sensors)
	}
	if !c.Grid.Valid() {
		return fmt.Errorf("Grid must have positive width, height and buckets, got %+v", c.Grid)
	}
	if c.Mode != stats.Rotation && c.Mode != stats.Translation {
		return fmt.Errorf("Mode must be rotation or translation, got %v", c.Mode)
	}
	if c.FOVDegrees <= 0 || c.FOVDegrees > 360 {
		return fmt.Errorf("FOVDegrees must be in (0, 360], got %f", c.FOVDegrees)
	}
	if c.HistogramBins <= 0 {
		return fmt.Errorf("HistogramBins must be positive, got %d", c.HistogramBins)
	}
	if c.PeakFraction < 0 || c.PeakFraction > 1 {
		return fmt.Errorf("PeakFraction must be in [0, 1], got %f", c.PeakFraction)
	}
	if c.PeerFraction < 0 || c.PeerFraction > 1 {
		return fmt.Errorf("PeerFraction must be in [0, 1], got %f", c.PeerFraction)
	}
	if c.MinVotes < 0 {
		return fmt.Errorf("MinVotes must be non-negative, got %d", c.MinVotes)
	}
	if c.FinalizeWorkers <= 0 {
		return fmt.Errorf("FinalizeWorkers must be positive, got %d", c.FinalizeWorkers)
	}
	if c.SparseThreshold < 0 || c.SparseThreshold > 1000 {
		return fmt.Errorf("SparseThreshold must be in [0, 1000], got %d", c.SparseThreshold)
	}
	if c.RansacRuns <= 0 || c.RansacInliers <= 0 {
		return fmt.Errorf("RansacRuns and RansacInliers must be positive, got %d and %d", c.RansacRuns, c.RansacInliers)
	}
	return nil
}

// AngularThreshold returns the largest circular standard deviation a cell
// may have to be accepted in rotation mode: FOV/(2·buckets), in radians.
func (c *Config) AngularThreshold() float64 {
	return c.FOVDegrees * math.Pi / 180 / (2 * float64(c.Grid.N))
}

// WithSensors sets the number of cameras.
func (c *Config) WithSensors(n int) *Config {
	c.Sensors = n
	return c
}

// WithGrid sets the image geometry and grid resolution.
func (c *Config) WithGrid(width, height, buckets int) *Config {
	c.Grid = cells.Grid{Width: width, Height: height, N: buckets}
	return c
}

// WithMode sets the aggregation mode.
func (c *Config) WithMode(m stats.Mode) *Config {
	c.Mode = m
	return c
}

// WithFOVDegrees sets the field of view behind the rotation threshold.
func (c *Config) WithFOVDegrees(deg float64) *Config {
	c.FOVDegrees = deg
	return c
}

// WithMinVotes sets the gap-fill confidence floor.
func (c *Config) WithMinVotes(n int) *Config {
	c.MinVotes = n
	return c
}

// WithFinalizeWorkers sets how many tables are finalized in parallel.
func (c *Config) WithFinalizeWorkers(n int) *Config {
	c.FinalizeWorkers = n
	return c
}

// WithSparse enables or disables the sparse vote table.
func (c *Config) WithSparse(enabled bool) *Config {
	c.SparseEnabled = enabled
	return c
}

// WithRansac sets the RANSAC iteration count and subset size.
func (c *Config) WithRansac(runs, inliers int) *Config {
	c.RansacRuns = runs
	c.RansacInliers = inliers
	return c
}

// WithSeed sets the seed of the internal random generator.
func (c *Config) WithSeed(seed uint64) *Config {
	c.Seed = seed
	return c
}
