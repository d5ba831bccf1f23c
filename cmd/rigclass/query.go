package main

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/rigmodel/internal/rig/classifier"
	"github.com/banshee-data/rigmodel/internal/rig/match"
	"github.com/banshee-data/rigmodel/internal/rig/report"
	"github.com/banshee-data/rigmodel/internal/rig/stats"
	"github.com/banshee-data/rigmodel/internal/rig/synth"
	"github.com/banshee-data/rigmodel/internal/units"
)

func (e *env) query(args []string) error {
	var c common
	fs := e.flagSet("query", &c)
	model := fs.String("model", "", "model file (required)")
	unit := unitsFlag(fs)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: rigclass query -model <file> <sensor1> <col1> <row1> <sensor2> <col2> <row2>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 6 {
		fs.Usage()
		return errUsage
	}
	if err := checkUnits(*unit); err != nil {
		return err
	}
	var v [6]float64
	for i, a := range fs.Args() {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		v[i] = f
	}
	s1, s2 := int(v[0]), int(v[3])

	_, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}
	if s1 < 0 || s1 >= cfg.Sensors || s2 < 0 || s2 >= cfg.Sensors {
		return fmt.Errorf("sensor ids must be in [0, %d)", cfg.Sensors)
	}
	cl, err := e.loadModel(*model, cfg)
	if err != nil {
		return err
	}
	defer cl.Close()

	r := cl.Query(s1, s2, v[1], v[2], v[4], v[5])
	if !r.Found {
		fmt.Fprintln(e.stdout, "no votes")
		return nil
	}
	value := r.Value
	if cfg.Mode.Circular() {
		value = units.ConvertAngle(value, *unit)
	}
	fmt.Fprintf(e.stdout, "%s=%.5f count=%d\n", cfg.Mode, value, r.Count)
	return nil
}

// frameEstimate is one line of estimate output.
type frameEstimate struct {
	Utime    int64          `json:"utime,omitempty"`
	Answered int            `json:"answered"`
	Estimate match.Estimate `json:"estimate"`
	Error    float64        `json:"error"`
	Odometry float64        `json:"odometry"`
}

// estimate predicts a transform per frame from the model alone: every match
// is queried, the answers are optionally balanced across sensors and then
// collapsed by RANSAC or by their mean.
func (e *env) estimate(args []string) error {
	var c common
	fs := e.flagSet("estimate", &c)
	model := fs.String("model", "", "model file (required)")
	in := fs.String("in", "-", "input JSONL observations (- for stdin)")
	out := fs.String("out", "-", "output JSONL estimates (- for stdout)")
	single := fs.Bool("single", false, "use the mean instead of RANSAC")
	balance := fs.Bool("balance", false, "balance answers across sensors before estimating")
	odometry := fs.String("odometry", "", "also write the per-frame odometry to this binary file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}
	cl, err := e.loadModel(*model, cfg)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := e.openInput(*in)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := e.createOutput(*out)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)

	var dists []float64
	degenerate := 0
	err = synth.ReadJSONL(r, func(o synth.Observation) error {
		answers := cl.QueryMatches(o.Matches)
		if *balance {
			answers = cl.BalanceBySensor(answers)
		}
		var est match.Estimate
		var errv float64
		if *single {
			est, errv = cl.ExtractSingle(answers)
		} else {
			est, errv = cl.RobustEstimate(answers)
		}
		if errv >= stats.ErrorSentinel {
			degenerate++
		}
		est.Utime = o.Estimate.Utime
		fe := frameEstimate{
			Utime:    o.Estimate.Utime,
			Answered: len(answers),
			Estimate: est,
			Error:    errv,
			Odometry: classifier.Odometry(answers, cfg.Sensors),
		}
		dists = append(dists, fe.Odometry)
		return enc.Encode(&fe)
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("read %s: %w", *in, err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Printf("estimated %d frames, %d without a usable estimate", len(dists), degenerate)

	if *odometry != "" {
		return classifier.SaveOdometry(e.fsys, *odometry, dists)
	}
	return nil
}

// filter rewrites an observation log keeping only the candidates the model
// finds plausible. Each frame's own estimate is the reference.
func (e *env) filter(args []string) error {
	var c common
	fs := e.flagSet("filter", &c)
	model := fs.String("model", "", "model file (required)")
	in := fs.String("in", "-", "input JSONL observations (- for stdin)")
	out := fs.String("out", "-", "output JSONL observations (- for stdout)")
	maxDev := fs.Float64("max-dev", 0, "largest deviation from the frame estimate kept, in -units for rotation (default: the angular threshold in rotation, 1 in translation)")
	unit := unitsFlag(fs)
	strict := fs.Bool("strict", false, "drop candidates the model has no votes for")
	useSparse := fs.Bool("sparse", false, "filter through the sparse vote table instead")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}
	if err := checkUnits(*unit); err != nil {
		return err
	}
	switch {
	case *maxDev > 0 && cfg.Mode.Circular():
		*maxDev = units.ToRadians(*maxDev, *unit)
	case *maxDev <= 0 && cfg.Mode.Circular():
		*maxDev = cfg.AngularThreshold()
	case *maxDev <= 0:
		*maxDev = 1
	}
	if *useSparse && !cfg.SparseEnabled {
		return fmt.Errorf("-sparse needs sparse_enabled in the tuning config")
	}
	cl, err := e.loadModel(*model, cfg)
	if err != nil {
		return err
	}
	defer cl.Close()

	r, err := e.openInput(*in)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := e.createOutput(*out)
	if err != nil {
		return err
	}

	var kept []synth.Observation
	before, after := 0, 0
	err = synth.ReadJSONL(r, func(o synth.Observation) error {
		before += o.Matches.Candidates()
		if *useSparse {
			o.Matches = cl.FilterSparse(o.Matches)
		} else {
			o.Matches = cl.Filter(o.Matches, classifier.FilterOptions{
				MaxDeviation: *maxDev,
				Reference:    o.Estimate.Value(cfg.Mode),
				Strict:       *strict,
			})
		}
		after += o.Matches.Candidates()
		kept = append(kept, o)
		return nil
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("read %s: %w", *in, err)
	}
	if err := synth.WriteJSONL(w, kept); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Printf("filtered %d frames: %d of %d candidates kept", len(kept), after, before)
	return nil
}

func (e *env) export(args []string) error {
	var c common
	fs := e.flagSet("export", &c)
	model := fs.String("model", "", "model file (required)")
	asciiDir := fs.String("ascii", "", "write value and count matrices into this directory")
	pngDir := fs.String("png", "", "write heatmaps of populated tables into this directory")
	htmlPath := fs.String("html", "", "write an interactive report to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *asciiDir == "" && *pngDir == "" && *htmlPath == "" {
		fmt.Fprintln(e.stderr, "Error: at least one of -ascii, -png or -html is required")
		fs.Usage()
		return errUsage
	}
	_, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}
	cl, err := e.loadModel(*model, cfg)
	if err != nil {
		return err
	}
	defer cl.Close()
	table := cl.Table()

	if *asciiDir != "" {
		if err := table.WriteASCII(e.fsys, *asciiDir); err != nil {
			return err
		}
		log.Printf("wrote %d ascii tables to %s", table.Tables(), *asciiDir)
	}
	if *pngDir != "" {
		written, err := report.WritePNGs(e.fsys, *pngDir, table)
		if err != nil {
			return err
		}
		log.Printf("wrote %d heatmaps to %s", len(written), *pngDir)
	}
	if *htmlPath != "" {
		if dir := filepath.Dir(*htmlPath); dir != "." {
			if err := e.fsys.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		w, err := e.fsys.Create(*htmlPath)
		if err != nil {
			return err
		}
		if err := report.WriteHTML(w, table); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		log.Printf("wrote report to %s", *htmlPath)
	}
	return nil
}
