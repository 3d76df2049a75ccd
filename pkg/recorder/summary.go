package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/picogrid/v2v-simulations/pkg/node"
)

// SummaryFileName is written next to the category directories after a run.
const SummaryFileName = "summary.txt"

// Summary describes a finished gathering run.
type Summary struct {
	RunID    uuid.UUID
	Seed     int64
	Epochs   uint64
	Lifetime [node.NumCategories]int
}

// WriteSummary writes <dir>/summary.txt.
func WriteSummary(dir string, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Num epochs:%d\n", s.Epochs)
	for _, c := range node.Categories() {
		fmt.Fprintf(&b, "Num %s:%d\n", c, s.Lifetime[c])
	}
	fmt.Fprintf(&b, "Run id:%s\n", s.RunID)
	fmt.Fprintf(&b, "Seed:%d\n", s.Seed)

	path := filepath.Join(dir, SummaryFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// ReadSummary parses a summary written by WriteSummary.
func ReadSummary(dir string) (*Summary, error) {
	f, err := os.Open(filepath.Join(dir, SummaryFileName))
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	s := &Summary{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch {
		case key == "Num epochs":
			s.Epochs, err = strconv.ParseUint(value, 10, 64)
		case key == "Run id":
			s.RunID, err = uuid.Parse(value)
		case key == "Seed":
			s.Seed, err = strconv.ParseInt(value, 10, 64)
		case strings.HasPrefix(key, "Num "):
			var c node.Category
			if c, err = node.ParseCategory(strings.TrimPrefix(key, "Num ")); err == nil {
				s.Lifetime[c], err = strconv.Atoi(value)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("parse summary line %q: %w", scanner.Text(), err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	return s, nil
}

// ClearRaw removes the CSV files in every category directory and the
// summary. Directories are left in place.
func ClearRaw(dir string) (int, error) {
	removed := 0
	for _, c := range node.Categories() {
		n, err := clearCSV(CategoryDir(dir, c))
		removed += n
		if err != nil {
			return removed, err
		}
	}
	if err := os.Remove(filepath.Join(dir, SummaryFileName)); err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("remove summary: %w", err)
	}
	return removed, nil
}

// ClearProcessed removes the CSV files directly under dir.
func ClearProcessed(dir string) (int, error) {
	return clearCSV(dir)
}

func clearCSV(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}
	for i, path := range matches {
		if err := os.Remove(path); err != nil {
			return i, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return len(matches), nil
}
