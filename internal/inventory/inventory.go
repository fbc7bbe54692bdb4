// Package inventory provides a TOML voice inventory with reference candidate
// generation and feature-distance cost models for the unit-selection search.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/book-expert/unitselect-service/internal/viterbi"
	"github.com/pelletier/go-toml/v2"
)

var (
	// ErrEmptyInventory indicates that an inventory holds no units.
	ErrEmptyInventory = errors.New("inventory has no units")
	// ErrMissingPhone indicates a unit or target without a phone label.
	ErrMissingPhone = errors.New("phone cannot be empty")
	// ErrDuplicateIndex indicates two units sharing one database index.
	ErrDuplicateIndex = errors.New("duplicate unit index")
	// ErrNegativeDuration indicates a unit with a negative duration.
	ErrNegativeDuration = errors.New("unit duration must be non-negative")
	// ErrFeatureDimension indicates feature vectors of differing lengths.
	ErrFeatureDimension = errors.New("feature dimension mismatch")
	// ErrFeatureWeight indicates a negative or non-finite feature weight.
	ErrFeatureWeight = errors.New("feature weights must be finite and non-negative")
	// ErrForeignValue indicates a target or unit that did not come from this package.
	ErrForeignValue = errors.New("value was not produced by the inventory package")
)

// Unit is one recorded segment of the voice database.
type Unit struct {
	Position   int       `toml:"index"`
	Phone      string    `toml:"phone"`
	DurationMS float64   `toml:"duration_ms"`
	Features   []float64 `toml:"features"`
	LeftEdge   []float64 `toml:"left_edge"`
	RightEdge  []float64 `toml:"right_edge"`
	CutInMS    float64   `toml:"cut_in_ms"`
	CutOutMS   float64   `toml:"cut_out_ms"`
}

// Index returns the unit's database index.
func (u *Unit) Index() int {
	return u.Position
}

// Duration returns the unit's audio length.
func (u *Unit) Duration() time.Duration {
	return milliseconds(u.DurationMS)
}

// Inventory is a voice database loaded from TOML.
type Inventory struct {
	Name       string `toml:"name"`
	SampleRate int    `toml:"sample_rate"`
	Units      []Unit `toml:"units"`

	byPhone map[string][]viterbi.Unit
}

// Load reads and parses an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file '%s': %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates an inventory document.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory

	err := toml.Unmarshal(data, &inv)
	if err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}

	err = inv.validate()
	if err != nil {
		return nil, err
	}

	inv.index()

	return &inv, nil
}

// Candidates returns every unit labelled with the target's phone, in database
// order. Unknown phones yield an empty pool.
func (inv *Inventory) Candidates(target viterbi.Target) ([]viterbi.Unit, error) {
	t, ok := target.(*Target)
	if !ok {
		return nil, fmt.Errorf("%w: target %T", ErrForeignValue, target)
	}

	return inv.byPhone[t.Phone], nil
}

// Phones returns the distinct phone labels in the inventory, sorted.
func (inv *Inventory) Phones() []string {
	phones := make([]string, 0, len(inv.byPhone))
	for phone := range inv.byPhone {
		phones = append(phones, phone)
	}

	slices.Sort(phones)

	return phones
}

func (inv *Inventory) validate() error {
	if len(inv.Units) == 0 {
		return ErrEmptyInventory
	}

	seen := make(map[int]struct{}, len(inv.Units))
	dimension := len(inv.Units[0].Features)

	for i := range inv.Units {
		unit := &inv.Units[i]

		if unit.Phone == "" {
			return fmt.Errorf("%w: unit %d", ErrMissingPhone, unit.Position)
		}

		if _, dup := seen[unit.Position]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, unit.Position)
		}

		seen[unit.Position] = struct{}{}

		if unit.DurationMS < 0 {
			return fmt.Errorf("%w: unit %d has %v ms", ErrNegativeDuration, unit.Position, unit.DurationMS)
		}

		if len(unit.Features) != dimension {
			return fmt.Errorf("%w: unit %d has %d features, expected %d",
				ErrFeatureDimension, unit.Position, len(unit.Features), dimension)
		}

		if len(unit.LeftEdge) != len(unit.RightEdge) {
			return fmt.Errorf("%w: unit %d edges have %d and %d values",
				ErrFeatureDimension, unit.Position, len(unit.LeftEdge), len(unit.RightEdge))
		}
	}

	return nil
}

func (inv *Inventory) index() {
	order := make([]*Unit, len(inv.Units))
	for i := range inv.Units {
		order[i] = &inv.Units[i]
	}

	slices.SortStableFunc(order, func(a, b *Unit) int {
		return a.Position - b.Position
	})

	inv.byPhone = make(map[string][]viterbi.Unit)
	for _, unit := range order {
		inv.byPhone[unit.Phone] = append(inv.byPhone[unit.Phone], unit)
	}
}

func milliseconds(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
