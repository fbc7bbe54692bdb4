package inventory

import (
	"fmt"

	"github.com/book-expert/unitselect-service/internal/viterbi"
	"github.com/pelletier/go-toml/v2"
)

// Target is one phone to synthesise with its desired prosodic features.
type Target struct {
	Phone    string    `json:"phone"    toml:"phone"`
	Features []float64 `json:"features" toml:"features"`
}

// Name returns the target's phone label.
func (t *Target) Name() string {
	return t.Phone
}

type targetFile struct {
	Targets []Target `toml:"targets"`
}

// ParseTargets decodes a `[[targets]]` document.
func ParseTargets(data []byte) ([]Target, error) {
	var file targetFile

	err := toml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode targets: %w", err)
	}

	for i, target := range file.Targets {
		if target.Phone == "" {
			return nil, fmt.Errorf("%w: target %d", ErrMissingPhone, i)
		}
	}

	return file.Targets, nil
}

// SearchTargets adapts targets for the search engine. The returned values
// point into targets.
func SearchTargets(targets []Target) []viterbi.Target {
	out := make([]viterbi.Target, len(targets))
	for i := range targets {
		out[i] = &targets[i]
	}

	return out
}
