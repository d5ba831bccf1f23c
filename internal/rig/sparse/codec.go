package sparse

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var byteOrder = binary.LittleEndian

// record is the on-disk form of one key and its value.
type record struct {
	SensorA int32
	CellA   int32
	SensorB int32
	CellB   int32
	Value   int32
}

// Save writes one record of five int32 (the key, then its value) per key,
// in Keys order.
func (s *Table) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, k := range s.Keys() {
		r := record{SensorA: k.SensorA, CellA: k.CellA, SensorB: k.SensorB, CellB: k.CellB, Value: int32(s.entries[k])}
		if err := binary.Write(bw, byteOrder, r); err != nil {
			return fmt.Errorf("write sparse record: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write sparse table: %w", err)
	}
	diagf("saved %d keys", len(s.entries))
	return nil
}

// Load replaces the contents of s with records read until end of input.
// A truncated final record is an error; s then holds the records before it.
func (s *Table) Load(r io.Reader) error {
	clear(s.entries)
	br := bufio.NewReader(r)
	for {
		var rec record
		err := binary.Read(br, byteOrder, &rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				opsf("sparse table truncated after %d records", len(s.entries))
			}
			return fmt.Errorf("read sparse record %d: %w", len(s.entries), err)
		}
		s.entries[Key{SensorA: rec.SensorA, CellA: rec.CellA, SensorB: rec.SensorB, CellB: rec.CellB}] = int(rec.Value)
	}
	diagf("loaded %d keys", len(s.entries))
	return nil
}
