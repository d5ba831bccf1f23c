package classifier

import (
	"github.com/sourcegraph/conc/pool"

	"github.com/banshee-data/rigmodel/internal/rig/stats"
)

// TableReport summarises the finalize pass over one sensor-pair table.
type TableReport struct {
	Table    int
	Cells    int // cell pairs holding samples
	Dropped  int // samples removed by the histogram filter
	Accepted int // cell pairs written to the table
	Rejected int // cell pairs whose spread exceeded the angular threshold
	Cleared  int // accepted cell pairs removed by the peer cleanup
	MaxCount int // best accepted count (nmax)
}

// FinalizeReport summarises a finalize pass.
type FinalizeReport struct {
	Tables   []TableReport
	Cells    int
	Dropped  int
	Accepted int
	Rejected int
	Cleared  int
}

// Finalize collapses the accumulated samples into the dense table and
// enters Ready. For every cell pair holding samples it
//
//  1. histograms the samples and drops those in bins holding at most
//     PeakFraction of the peak bin;
//  2. takes the mean and standard deviation of the survivors;
//  3. in rotation mode rejects the cell when the deviation is not below
//     AngularThreshold;
//  4. sets accepted cells with the survivor count.
//
// Each table is then swept once more and accepted cells holding less than
// PeerFraction of the table's best count are cleared. The raw samples are
// kept, so Finalize is idempotent: every table is rebuilt from the same
// samples and in-place updates made since the last Finalize are discarded.
// Tables are independent and run on up to FinalizeWorkers goroutines.
func (c *Classifier) Finalize() FinalizeReport {
	ntables := c.table.Tables()
	reports := make([]TableReport, ntables)

	if c.cfg.FinalizeWorkers <= 1 || ntables == 1 {
		for t := 0; t < ntables; t++ {
			reports[t] = c.finalizeTable(t)
		}
	} else {
		p := pool.New().WithMaxGoroutines(c.cfg.FinalizeWorkers)
		for t := 0; t < ntables; t++ {
			p.Go(func() {
				reports[t] = c.finalizeTable(t)
			})
		}
		p.Wait()
	}

	rep := FinalizeReport{Tables: reports}
	for _, r := range reports {
		rep.Cells += r.Cells
		rep.Dropped += r.Dropped
		rep.Accepted += r.Accepted
		rep.Rejected += r.Rejected
		rep.Cleared += r.Cleared
	}
	c.state = Ready
	opsf("finalized %d tables: %d cells, %d accepted, %d rejected, %d cleared, %d samples dropped",
		ntables, rep.Cells, rep.Accepted, rep.Rejected, rep.Cleared, rep.Dropped)
	return rep
}

// finalizeTable touches only table t of the dense table and the accumulator.
func (c *Classifier) finalizeTable(t int) TableReport {
	rep := TableReport{Table: t}
	mode := c.cfg.Mode
	thresh := c.cfg.AngularThreshold()

	c.table.ResetTable(t)
	c.acc.Each(t, func(a, b int, vals []float64) {
		rep.Cells++
		kept := stats.FilterPeakRelative(vals, c.cfg.HistogramBins, c.cfg.PeakFraction)
		rep.Dropped += len(vals) - len(kept)
		if len(kept) == 0 {
			return
		}

		mean, stdev := stats.Summarize(kept, mode)
		if mode.Circular() && !(stdev < thresh) {
			rep.Rejected++
			tracef("table %d cell (%d,%d) rejected: stdev %.4f >= %.4f", t, a, b, stdev, thresh)
			return
		}
		c.table.Set(t, a, b, mean, len(kept))
		rep.Accepted++
		rep.MaxCount = max(rep.MaxCount, len(kept))
	})

	limit := c.cfg.PeerFraction * float64(rep.MaxCount)
	nel := c.table.Cells()
	for a := 0; a < nel; a++ {
		for b := 0; b < nel; b++ {
			if n := c.table.Count(t, a, b); n > 0 && float64(n) < limit {
				c.table.Clear(t, a, b)
				rep.Cleared++
			}
		}
	}

	if rep.Cells > 0 {
		diagf("table %d: nmax=%d threshold=%.2f cells=%d accepted=%d rejected=%d cleared=%d",
			t, rep.MaxCount, limit, rep.Cells, rep.Accepted, rep.Rejected, rep.Cleared)
	}
	return rep
}
