package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/rigmodel/internal/rig/classifier"
	"github.com/banshee-data/rigmodel/internal/rig/store"
	"github.com/banshee-data/rigmodel/internal/rig/synth"
	"github.com/banshee-data/rigmodel/internal/timeutil"
)

func (e *env) synth(args []string) error {
	var c common
	fs := e.flagSet("synth", &c)
	out := fs.String("out", "-", "output JSONL file (- for stdout)")
	linksPath := fs.String("links", "", "JSON file holding the ground-truth links (default: random links)")
	random := fs.Int("random", 8, "number of random links when -links is not set")
	span := fs.Float64("span", 0, "random link values are drawn from [-span, span] (default: π/4 rotation, 5 translation)")
	n := fs.Int("n", 200, "observations per link")
	noise := fs.Float64("noise", 0.02, "standard deviation of the value noise")
	outliers := fs.Float64("outliers", 0.05, "share of observations replaced by outliers")
	seed := fs.Uint64("seed", 1, "generator seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}

	g := synth.New(synth.Config{
		Grid:        cfg.Grid,
		Mode:        cfg.Mode,
		Noise:       *noise,
		OutlierRate: *outliers,
		Seed:        *seed,
	})

	var links []synth.Link
	if *linksPath != "" {
		data, err := e.fsys.ReadFile(*linksPath)
		if err != nil {
			return fmt.Errorf("read links: %w", err)
		}
		if err := json.Unmarshal(data, &links); err != nil {
			return fmt.Errorf("parse links %s: %w", *linksPath, err)
		}
	} else {
		if *span == 0 {
			*span = 5
			if cfg.Mode.Circular() {
				*span = math.Pi / 4
			}
		}
		links = g.RandomLinks(cfg.Sensors, *random, *span)
	}

	w, err := e.createOutput(*out)
	if err != nil {
		return err
	}
	obs := g.Generate(links, *n)
	if err := synth.WriteJSONL(w, obs); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Printf("wrote %d observations over %d links", len(obs), len(links))
	return nil
}

// trainOptions are the post-finalize steps shared by train and stream.
type trainOptions struct {
	fill      bool
	diagonal  bool
	cleanup   int
	normalize bool
}

func (o *trainOptions) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.fill, "fill", false, "complete under-observed entries through pivot cells")
	fs.BoolVar(&o.diagonal, "diagonal", false, "force same-sensor, same-cell entries to the identity")
	fs.IntVar(&o.cleanup, "cleanup", 0, "clear entries with fewer votes than this (0 disables)")
	fs.BoolVar(&o.normalize, "normalize-sparse", true, "convert sparse votes to per-mille shares")
}

func (o *trainOptions) apply(c *classifier.Classifier) {
	if o.fill {
		fills := c.FillGaps()
		log.Printf("gap fill resolved %d entries", len(fills))
	}
	if o.diagonal {
		c.ForceDiagonal()
	}
	if o.cleanup > 0 {
		log.Printf("cleanup cleared %d entries below %d votes", c.Cleanup(o.cleanup), o.cleanup)
	}
	if o.normalize {
		c.NormalizeSparse()
	}
}

func logReport(rep classifier.FinalizeReport) {
	log.Printf("finalized %d tables: %d cells, %d accepted, %d rejected, %d cleared, %d samples dropped",
		len(rep.Tables), rep.Cells, rep.Accepted, rep.Rejected, rep.Cleared, rep.Dropped)
}

func (e *env) train(args []string) error {
	var c common
	var opts trainOptions
	fs := e.flagSet("train", &c)
	in := fs.String("in", "-", "input JSONL observations (- for stdin)")
	model := fs.String("model", "", "output model file (required)")
	dbPath := fs.String("db", "", "also persist a snapshot to this sqlite database")
	reason := fs.String("reason", "train", "snapshot reason recorded with -db")
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *model == "" {
		fmt.Fprintln(e.stderr, "Error: -model is required")
		fs.Usage()
		return errUsage
	}
	_, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}

	cl, err := classifier.New(*cfg)
	if err != nil {
		return err
	}
	defer cl.Close()
	r, err := e.openInput(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	frames, recorded := 0, 0
	err = synth.ReadJSONL(r, func(o synth.Observation) error {
		frames++
		recorded += cl.AddObservations(o.Matches, o.Estimate)
		return nil
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}
	log.Printf("read %d frames, recorded %d observations", frames, recorded)

	logReport(cl.Finalize())
	opts.apply(cl)

	if err := cl.Save(e.fsys, *model); err != nil {
		return err
	}
	mean, stdev, n := cl.Stat()
	log.Printf("saved %s: %d populated entries, mean %.5f, stdev %.5f", *model, n, mean, stdev)

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := cl.Persist(st, timeutil.RealClock{}, *reason)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, id)
	}
	return nil
}

// stream trains from a possibly unbounded observation stream. The first
// -warmup frames are accumulated and finalized; later frames update the
// table in place. With -db the model is snapshotted every interval and once
// more on exit.
func (e *env) stream(args []string) error {
	var c common
	var opts trainOptions
	fs := e.flagSet("stream", &c)
	in := fs.String("in", "-", "input JSONL observations (- for stdin)")
	model := fs.String("model", "", "save the model here on exit")
	dbPath := fs.String("db", "", "sqlite database for periodic snapshots")
	warmup := fs.Int("warmup", 1000, "frames accumulated before the first finalize")
	interval := fs.Duration("interval", 0, "snapshot interval (default: snapshot_interval from the tuning file)")
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tuning, cfg, err := e.setup(&c)
	if err != nil {
		return err
	}
	if *interval <= 0 {
		*interval = tuning.GetSnapshotInterval()
	}

	cl, err := classifier.New(*cfg)
	if err != nil {
		return err
	}
	clock := timeutil.RealClock{}
	shared := classifier.NewShared(cl, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	var wg sync.WaitGroup
	if *dbPath != "" {
		st, err = store.Open(*dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := shared.RunSnapshots(ctx, st, *interval); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("snapshot loop stopped: %v", err)
			}
		}()
	}

	r, err := e.openInput(*in)
	if err != nil {
		return err
	}
	defer r.Close()

	finalize := func() {
		logReport(shared.Finalize())
		shared.Do(func(c *classifier.Classifier) error {
			opts.apply(c)
			return nil
		})
		shared.Publish()
	}

	readErr := make(chan error, 1)
	go func() {
		frames := 0
		readErr <- synth.ReadJSONL(r, func(o synth.Observation) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			shared.AddObservations(o.Matches, o.Estimate)
			frames++
			if frames == *warmup {
				finalize()
			}
			return nil
		})
	}()

	select {
	case err = <-readErr:
	case <-ctx.Done():
		log.Printf("interrupted, shutting down")
	}
	stop()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("read %s: %w", *in, err)
	}

	return shared.Do(func(c *classifier.Classifier) error {
		defer c.Close()
		if c.State() != classifier.Ready {
			c.Finalize()
			opts.apply(c)
		} else if opts.normalize {
			c.NormalizeSparse()
		}
		if st != nil {
			if _, err := c.Persist(st, clock, "shutdown"); err != nil {
				return err
			}
		}
		if *model != "" {
			return c.Save(e.fsys, *model)
		}
		return nil
	})
}
