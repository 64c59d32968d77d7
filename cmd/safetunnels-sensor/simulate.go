package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
	"github.com/RickyDenton/SafeTunnels/internal/logging"
	"github.com/RickyDenton/SafeTunnels/internal/scenario"
	"github.com/RickyDenton/SafeTunnels/internal/sim"
)

var (
	simSinks       sinkOptions
	simSteps       int
	simCorrelation uint
	simScenario    string
	simSeed        int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the quantity simulator without a broker",
	Long: "simulate draws a series of samples for every quantity and writes them to the configured sinks. " +
		"The average fan relative speed is fixed by --correlation or scripted by --scenario, " +
		"either a built-in scenario name or a YAML file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd.Context())
		logger := logging.FromContext(cmd.Context())
		if err := cfg.Simulator.Params().Validate(); err != nil {
			return err
		}
		if simSteps < 0 {
			return fmt.Errorf("--steps must not be negative, got %d", simSteps)
		}
		sc, err := loadScenario(simScenario, simCorrelation)
		if err != nil {
			return err
		}

		writer, cleanup, err := newWriters(cfg, "simulated", simSinks)
		if err != nil {
			return err
		}
		defer cleanup()

		seed := simSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rows, err := sim.Simulation{
			Config:   cfg,
			NodeID:   "simulated",
			Scenario: sc,
			Steps:    simSteps,
			Rand:     rand.New(rand.NewSource(seed)),
			Writer:   writer,
			Start:    time.Now(),
			Logger:   logger,
		}.Run()
		if err != nil {
			return err
		}
		logger.Info("simulation finished", "scenario", sc.Name, "rows", len(rows), "seed", seed)
		return nil
	},
}

// loadScenario resolves name to a built-in scenario or a YAML file. An
// empty name holds correlation constant.
func loadScenario(name string, correlation uint) (*scenario.Scenario, error) {
	if name == "" {
		if correlation > connectivity.MaxCorrelation {
			return nil, fmt.Errorf("%w: %d > %d", connectivity.ErrCorrelationRange, correlation, connectivity.MaxCorrelation)
		}
		return scenario.Constant(correlation), nil
	}
	if sc, ok := scenario.BuiltIn()[name]; ok {
		return &sc, nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return scenario.Load(name)
}

func init() {
	addSinkFlags(simulateCmd, &simSinks, "auto")
	simulateCmd.Flags().IntVar(&simSteps, "steps", 100, "Samples drawn per quantity")
	simulateCmd.Flags().UintVar(&simCorrelation, "correlation", 0, "Constant average fan relative speed (0..100)")
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "Built-in scenario (idle, ventilation, alarm) or scenario YAML file")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (time based when 0)")
}
