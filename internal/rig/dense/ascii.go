package dense

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/rigmodel/internal/fsutil"
)

// ASCIINames returns the value and count file names of table t.
func (d *Table) ASCIINames(t int) (values, counts string) {
	kind := "rot"
	if !d.mode.Circular() {
		kind = "trans"
	}
	return fmt.Sprintf("class-%s-%02d.dat", kind, t), fmt.Sprintf("class-%s-n-%02d.dat", kind, t)
}

// WriteASCII writes every table into dir as two nel×nel text matrices, one
// of values (%.5f) and one of counts, one row per source cell.
func (d *Table) WriteASCII(fsys fsutil.FileSystem, dir string) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	var vb, nb bytes.Buffer
	for t := 0; t < d.Tables(); t++ {
		vb.Reset()
		nb.Reset()
		base := t * d.nel * d.nel
		for a := 0; a < d.nel; a++ {
			row := base + a*d.nel
			for b := 0; b < d.nel; b++ {
				fmt.Fprintf(&vb, "%.5f ", d.value[row+b])
				fmt.Fprintf(&nb, "%d ", d.count[row+b])
			}
			vb.WriteByte('\n')
			nb.WriteByte('\n')
		}
		vname, nname := d.ASCIINames(t)
		if err := fsys.WriteFile(filepath.Join(dir, vname), vb.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", vname, err)
		}
		if err := fsys.WriteFile(filepath.Join(dir, nname), nb.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", nname, err)
		}
	}
	diagf("wrote %d ascii tables to %s", d.Tables(), dir)
	return nil
}
