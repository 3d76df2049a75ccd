package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/picogrid/v2v-simulations/pkg/geometry"
	"github.com/picogrid/v2v-simulations/pkg/node"
)

// ReadRows parses a raw data stream. The header row is required.
func ReadRows(r io.Reader) ([]node.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []node.Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}

		var v [4]float64
		for i, field := range record {
			if v[i], err = strconv.ParseFloat(field, 64); err != nil {
				line, _ := cr.FieldPos(i)
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		rows = append(rows, node.Row{
			Position: geometry.Point{X: v[0], Y: v[1]},
			Beacon:   geometry.Point{X: v[2], Y: v[3]},
		})
	}
}

// WriteVectors writes the header and one row per vector.
func WriteVectors(w io.Writer, vectors []Vector) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, v := range vectors {
		if err := cw.Write(v.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExtractFile reads the raw file at src and writes its feature vectors to
// dst. Files too short to fill one window produce no output file. It
// returns the number of vectors written.
func ExtractFile(src, dst string, size int, label node.Category) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	rows, err := ReadRows(in)
	in.Close()
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", src, err)
	}

	vectors, err := Extract(rows, size, label)
	if err != nil {
		return 0, err
	}
	if len(vectors) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	if err := WriteVectors(out, vectors); err != nil {
		out.Close()
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return len(vectors), nil
}
