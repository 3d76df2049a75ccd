package node

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/picogrid/v2v-simulations/pkg/config"
)

// Category is the ground-truth behavior class of a node.
type Category int

// Node categories. The numeric value is the label written to feature files.
const (
	Good Category = iota
	Faulty
	Malicious
)

// NumCategories is the number of defined categories.
const NumCategories = 3

type categoryInfo struct {
	label string // file and directory naming
	title string // display and summary naming
	color *color.Color
}

var categories = [NumCategories]categoryInfo{
	Good:      {label: "good", title: "Good", color: color.New(color.FgGreen)},
	Faulty:    {label: "faulty", title: "Faulty", color: color.New(color.FgYellow)},
	Malicious: {label: "malicious", title: "Malicious", color: color.New(color.FgMagenta, color.Bold)},
}

// Categories returns every category in label order.
func Categories() []Category {
	return []Category{Good, Faulty, Malicious}
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	return c >= 0 && c < NumCategories
}

// String returns the lowercase label, e.g. "faulty".
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categories[c].label
}

// Title returns the capitalized label, e.g. "Faulty".
func (c Category) Title() string {
	if !c.Valid() {
		return c.String()
	}
	return categories[c].title
}

// Code returns the integer class label.
func (c Category) Code() int {
	return int(c)
}

// Color returns the terminal color used for this category.
func (c Category) Color() *color.Color {
	if !c.Valid() {
		return color.New(color.Reset)
	}
	return categories[c].color
}

// ParseCategory accepts either a label ("malicious") or a numeric code ("2").
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		if c := Category(code); c.Valid() {
			return c, nil
		}
		return 0, fmt.Errorf("unknown category code %d", code)
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, categories[c].label) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// DrawCategory takes a single uniform sample in [0, 100) and maps it onto
// the cumulative good, faulty, malicious thresholds. The distribution is
// expected to have passed config validation.
func DrawCategory(rng *rand.Rand, d config.DistributionConfig) Category {
	u := rng.Float64() * 100
	switch {
	case u < d.Good:
		return Good
	case u < d.Good+d.Faulty:
		return Faulty
	default:
		return Malicious
	}
}
