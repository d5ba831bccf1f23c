// Command rigclass trains and queries the cross-sensor correspondence model
// of a camera rig from JSONL observation logs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/rigmodel/internal/config"
	"github.com/banshee-data/rigmodel/internal/fsutil"
	"github.com/banshee-data/rigmodel/internal/rig/classifier"
	"github.com/banshee-data/rigmodel/internal/rig/dense"
	"github.com/banshee-data/rigmodel/internal/rig/sparse"
	"github.com/banshee-data/rigmodel/internal/rig/store"
	"github.com/banshee-data/rigmodel/internal/units"
	"github.com/banshee-data/rigmodel/internal/version"
)

// errUsage marks a command line that was rejected after printing usage.
var errUsage = errors.New("invalid usage")

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	if err := run(flag.Args(), os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("rigclass %s: %v", flag.Arg(0), err)
	}
}

// env carries the process streams a command reads and writes.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	fsys   fsutil.FileSystem
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr, fsys: fsutil.OSFileSystem{}}
	command, rest := args[0], args[1:]

	switch command {
	case "synth":
		return e.synth(rest)
	case "train":
		return e.train(rest)
	case "stream":
		return e.stream(rest)
	case "query":
		return e.query(rest)
	case "estimate":
		return e.estimate(rest)
	case "filter":
		return e.filter(rest)
	case "export":
		return e.export(rest)
	case "snapshot":
		return e.snapshot(rest)
	case "version":
		fmt.Fprintf(stdout, "rigclass %s\n", version.String())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `rigclass - cross-sensor correspondence model for camera rigs

Usage: rigclass <command> [options]

Commands:
  synth      Generate synthetic observations as JSONL
  train      Train a model from JSONL observations and save it
  stream     Train continuously from JSONL, snapshotting to a database
  query      Predict the transform between two points
  estimate   Estimate per-frame transforms from a trained model
  filter     Drop implausible candidates from JSONL observations
  export     Write a model as ASCII matrices, PNG heatmaps or HTML
  snapshot   List, prune or restore database snapshots
  version    Show rigclass version
  help       Show this help message

Common Flags:
  -config <file>   Tuning file (.json, .yaml); defaults to `+config.DefaultConfigPath+`
                   when present, built-in defaults otherwise
  -v <level>       Log verbosity: 0 ops, 1 diag, 2 trace (default 0)

Examples:
  rigclass synth -n 500 -out obs.jsonl
  rigclass train -in obs.jsonl -model classes.bin -fill -db rig.db
  rigclass query -model classes.bin 0 100 120 1 420 130
  rigclass export -model classes.bin -png plots -html report.html
  rigclass snapshot list -db rig.db
`)
}

// common holds the flags shared by every command.
type common struct {
	configPath string
	verbosity  int
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "tuning config file (.json, .yaml, .yml)")
	fs.IntVar(&c.verbosity, "v", 0, "log verbosity: 0 ops, 1 diag, 2 trace")
}

func (e *env) flagSet(name string, c *common) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	if c != nil {
		c.register(fs)
	}
	return fs
}

// setup wires the log streams and loads the tuning config.
func (e *env) setup(c *common) (*config.TuningConfig, *classifier.Config, error) {
	setLogging(c.verbosity, e.stderr)
	tuning, err := loadTuning(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg := classifier.ConfigFromTuning(tuning)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return tuning, cfg, nil
}

// unitsFlag registers the -units flag of commands that print or accept
// rotations.
func unitsFlag(fs *flag.FlagSet) *string {
	return fs.String("units", units.Rad, "rotation units: "+units.GetValidUnitsString())
}

func checkUnits(u string) error {
	if !units.IsValid(u) {
		return fmt.Errorf("invalid units %q (valid: %s)", u, units.GetValidUnitsString())
	}
	return nil
}

// loadTuning loads path, or the canonical defaults file when path is empty
// and the file exists, or the built-in defaults.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadTuningConfig(config.DefaultConfigPath)
	}
	return config.DefaultTuningConfig(), nil
}

// setLogging routes the ops stream of every package to w, and the diag and
// trace streams as the level allows.
func setLogging(level int, w io.Writer) {
	var diag, trace io.Writer
	if level >= 1 {
		diag = w
	}
	if level >= 2 {
		trace = w
	}
	classifier.SetLogWriters(w, diag, trace)
	dense.SetLogWriters(w, diag, trace)
	sparse.SetLogWriters(w, diag, trace)
	store.SetLogWriters(w, diag, trace)
}

// openInput opens path for reading; "-" and "" read stdin.
func (e *env) openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(e.stdin), nil
	}
	f, err := e.fsys.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// createOutput creates path for writing; "-" and "" write stdout.
func (e *env) createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{e.stdout}, nil
	}
	return e.fsys.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// loadModel loads the classifier saved at path for cfg.
func (e *env) loadModel(path string, cfg *classifier.Config) (*classifier.Classifier, error) {
	if path == "" {
		return nil, fmt.Errorf("-model is required")
	}
	return classifier.Load(e.fsys, path, *cfg)
}
