package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/rigmodel/internal/rig/classifier"
	"github.com/banshee-data/rigmodel/internal/rig/store"
)

func (e *env) snapshot(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(e.stderr, "Usage: rigclass snapshot <list|prune|restore|migrate> [options]")
		return errUsage
	}
	switch args[0] {
	case "list":
		return e.snapshotList(args[1:])
	case "prune":
		return e.snapshotPrune(args[1:])
	case "restore":
		return e.snapshotRestore(args[1:])
	case "migrate":
		return e.snapshotMigrate(args[1:])
	default:
		fmt.Fprintf(e.stderr, "Unknown snapshot command: %s\n", args[0])
		return errUsage
	}
}

func (e *env) openStore(c *common, path string) (*store.Store, error) {
	setLogging(c.verbosity, e.stderr)
	if path == "" {
		return nil, fmt.Errorf("-db is required")
	}
	return store.Open(path)
}

func (e *env) snapshotList(args []string) error {
	var c common
	fs := e.flagSet("snapshot list", &c)
	dbPath := fs.String("db", "", "sqlite database (required)")
	limit := fs.Int("limit", 20, "maximum snapshots listed, newest first (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := e.openStore(&c, *dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.ListTableSnapshots(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%-36s  %-20s  %7s  %7s  %-11s  %9s  %9s  %-6s  %s\n",
		"ID", "TAKEN", "SENSORS", "BUCKETS", "MODE", "POPULATED", "BYTES", "SPARSE", "REASON")
	for _, s := range list {
		sparse := "no"
		if s.HasSparse {
			sparse = "yes"
		}
		fmt.Fprintf(e.stdout, "%-36s  %-20s  %7d  %7d  %-11s  %9d  %9d  %-6s  %s\n",
			s.ID, time.Unix(0, s.TakenUnixNanos).UTC().Format(time.RFC3339),
			s.Sensors, s.Buckets, s.Mode, s.PopulatedCells, s.BlobBytes, sparse, s.Reason)
	}
	return nil
}

func (e *env) snapshotPrune(args []string) error {
	var c common
	fs := e.flagSet("snapshot prune", &c)
	dbPath := fs.String("db", "", "sqlite database (required)")
	olderThan := fs.Duration("older-than", 7*24*time.Hour, "delete snapshots older than this")
	keep := fs.Int("keep", 5, "always keep this many of the newest snapshots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := e.openStore(&c, *dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.PruneBefore(time.Now().Add(-*olderThan).UnixNano(), *keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "pruned %d snapshots\n", n)
	return nil
}

// snapshotRestore writes a stored snapshot out as a model file. Without -id
// the newest snapshot matching the tuning config is used.
func (e *env) snapshotRestore(args []string) error {
	var c common
	fs := e.flagSet("snapshot restore", &c)
	dbPath := fs.String("db", "", "sqlite database (required)")
	id := fs.String("id", "", "snapshot id (default: newest matching the config)")
	model := fs.String("model", "", "output model file (required)")
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
	st, err := e.openStore(&c, *dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var snap *classifier.TableSnapshot
	if *id != "" {
		snap, err = st.GetTableSnapshot(*id)
	} else {
		snap, err = st.LatestTableSnapshot(cfg.Sensors, cfg.Grid.N, cfg.Mode.String())
	}
	if err != nil {
		return err
	}

	cl, err := classifier.New(*cfg)
	if err != nil {
		return err
	}
	defer cl.Close()
	if err := cl.Restore(snap); err != nil {
		return err
	}
	if cfg.SparseEnabled {
		sp, err := st.SparseSnapshotFor(snap.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			if err := cl.RestoreSparse(sp); err != nil {
				return err
			}
		}
	}
	if err := cl.Save(e.fsys, *model); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "restored %s to %s\n", snap.ID, *model)
	return nil
}

func (e *env) snapshotMigrate(args []string) error {
	var c common
	fs := e.flagSet("snapshot migrate", &c)
	dbPath := fs.String("db", "", "sqlite database (required)")
	down := fs.Bool("down", false, "roll back every migration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := e.openStore(&c, *dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if *down {
		if err := st.MigrateDown(); err != nil {
			return err
		}
	}
	v, dirty, err := st.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "schema version %d dirty=%v\n", v, dirty)
	return nil
}
