// Unitselect runs the unit-selection search offline over a TOML voice
// inventory and a TOML target list, printing the chosen units.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/unitselect-service/internal/core"
	"github.com/book-expert/unitselect-service/internal/inventory"
	"github.com/book-expert/unitselect-service/internal/selector"
	"github.com/book-expert/unitselect-service/internal/viterbi"
)

// Flag descriptions.
const (
	flagInventoryDesc = "TOML voice inventory file"
	flagTargetsDesc   = "TOML file with [[targets]] to synthesise"
	flagBeamDesc      = "Beam width: -1 for exhaustive search, or a positive path count"
	flagWeightDesc    = "Continuity weight applied to non-contiguous join costs"
	flagWorkersDesc   = "Goroutines evaluating costs within one target"
	flagJSONDesc      = "Print the result as JSON"
	flagVerboseDesc   = "Write a search log to the log directory"
	flagLogDirDesc    = "Directory for the verbose log"
)

// Flag names.
const (
	flagInventory = "inventory"
	flagTargets   = "targets"
	flagBeam      = "beam"
	flagWeight    = "weight"
	flagWorkers   = "workers"
	flagJSON      = "json"
	flagVerbose   = "verbose"
	flagLogDir    = "log-dir"
)

// Error and output messages.
const (
	errInventoryRequired = "--inventory must be provided"
	errTargetsRequired   = "--targets must be provided"
	errWorkersNegative   = "--workers must be non-negative"
	errFmtReadTargets    = "failed to read targets: %w"
	errFmtReadInventory  = "failed to read inventory: %w"
	errFmtSelection      = "selection failed: %w"
	errFmtNoPathHint     = "%w (try a wider --beam or a lower --weight)"
	outFmtHeader         = "%-4s %-6s %-6s %10s %10s %10s\n"
	outFmtRow            = "%-4d %-6s %-6d %10.4f %10.4f %10.1f\n"
	outFmtScore          = "score: %.4f\n"
	logFileName          = "unitselect.log"
	logFmtInventory      = "Loaded inventory %s: %d units, phones %v"
)

var (
	// ErrInventoryRequired indicates the inventory flag is missing.
	ErrInventoryRequired = errors.New(errInventoryRequired)
	// ErrTargetsRequired indicates the targets flag is missing.
	ErrTargetsRequired = errors.New(errTargetsRequired)
	// ErrWorkersNegative indicates a negative worker count.
	ErrWorkersNegative = errors.New(errWorkersNegative)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	inventory string
	targets   string
	logDir    string
	weight    float64
	beam      int
	workers   int
	json      bool
	verbose   bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run(args []string, out io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validateFlags(flags)
	if err != nil {
		return err
	}

	var searchLog *logger.Logger

	if flags.verbose {
		searchLog, err = logger.New(flags.logDir, logFileName)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		defer func() { _ = searchLog.Close() }()
	}

	result, err := selectUnits(flags, searchLog)
	if err != nil {
		return err
	}

	if flags.json {
		return writeJSON(out, result)
	}

	return writeTable(out, result)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	set := flag.NewFlagSet("unitselect", flag.ContinueOnError)
	set.StringVar(&flags.inventory, flagInventory, "", flagInventoryDesc)
	set.StringVar(&flags.targets, flagTargets, "", flagTargetsDesc)
	defaults := viterbi.DefaultConfig()

	set.IntVar(&flags.beam, flagBeam, defaults.BeamWidth, flagBeamDesc)
	set.Float64Var(&flags.weight, flagWeight, defaults.ContinuityWeight, flagWeightDesc)
	set.IntVar(&flags.workers, flagWorkers, defaults.Workers, flagWorkersDesc)
	set.BoolVar(&flags.json, flagJSON, false, flagJSONDesc)
	set.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	set.StringVar(&flags.logDir, flagLogDir, os.TempDir(), flagLogDirDesc)

	err := set.Parse(args)
	if err != nil {
		return flags, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// validateFlags checks required flags and the search settings.
func validateFlags(flags appFlags) error {
	if flags.inventory == "" {
		return ErrInventoryRequired
	}

	if flags.targets == "" {
		return ErrTargetsRequired
	}

	if flags.workers < 0 {
		return fmt.Errorf("%w: got %d", ErrWorkersNegative, flags.workers)
	}

	return viterbi.Config{
		BeamWidth:        flags.beam,
		ContinuityWeight: flags.weight,
		Workers:          flags.workers,
	}.Validate()
}

func selectUnits(flags appFlags, searchLog *logger.Logger) (*core.SelectionResult, error) {
	inv, err := inventory.Load(flags.inventory)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadInventory, err)
	}

	if searchLog != nil {
		searchLog.Info(logFmtInventory, inv.Name, len(inv.Units), inv.Phones())
	}

	targetData, err := os.ReadFile(flags.targets)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadTargets, err)
	}

	targets, err := inventory.ParseTargets(targetData)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadTargets, err)
	}

	specs := make([]core.TargetSpec, len(targets))
	for i, target := range targets {
		specs[i] = core.TargetSpec{Phone: target.Phone, Features: target.Features}
	}

	cfg := core.SelectionConfig{
		BeamWidth:        flags.beam,
		ContinuityWeight: flags.weight,
		Workers:          flags.workers,
		FeatureWeights:   nil,
	}

	sel, err := selector.New(cfg, searchLog)
	if err != nil {
		return nil, fmt.Errorf(errFmtSelection, err)
	}

	result, err := sel.SelectInventory(inv, specs, cfg)
	if errors.Is(err, viterbi.ErrNoPath) {
		return nil, fmt.Errorf(errFmtNoPathHint, err)
	}

	if err != nil {
		return nil, fmt.Errorf(errFmtSelection, err)
	}

	return result, nil
}

func writeJSON(out io.Writer, result *core.SelectionResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	return nil
}

func writeTable(out io.Writer, result *core.SelectionResult) error {
	_, err := fmt.Fprintf(out, outFmtHeader, "#", "phone", "unit", "target", "join", "ms")
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	for i, unit := range result.Units {
		_, err = fmt.Fprintf(out, outFmtRow, i, unit.Phone, unit.UnitIndex, unit.TargetCost, unit.JoinCost, unit.DurationMS)
		if err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	_, err = fmt.Fprintf(out, outFmtScore, result.Score)
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	return nil
}
