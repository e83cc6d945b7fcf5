package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/vpsie/cluster-simulator/internal/logging"
	"github.com/vpsie/cluster-simulator/internal/metrics"
	"github.com/vpsie/cluster-simulator/internal/scheduler/pipeline"
	"github.com/vpsie/cluster-simulator/pkg/simulation"
)

func newRunCmd() *cobra.Command {
	var untilTime float64
	var printMetrics bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a trace file to completion or a fixed point in time",
	}
	sf := addScenarioFlags(cmd)
	cmd.Flags().Float64Var(&untilTime, "until", 0, "stop at this simulated time instead of running to exhaustion (0 runs every scheduled event)")
	cmd.Flags().BoolVar(&printMetrics, "metrics", false, "print every collected prometheus metric, in text exposition format, after the run")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, sf, devMode, untilTime, printMetrics)
	}
	return cmd
}

func runScenario(cmd *cobra.Command, sf *scenarioFlags, dev bool, untilTime float64, printMetrics bool) error {
	cfg := sf.config()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("simulate: invalid configuration: %w", err)
	}
	trace, err := sf.trace()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(dev)
	if err != nil {
		return fmt.Errorf("simulate: building logger: %w", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	rec := metrics.NewRecorder(registry)

	sim := simulation.New(cfg, sf.nodes(), trace, pipeline.DefaultConfig(), simulation.Options{
		EnableCA:  sf.enableCA,
		EnableHPA: sf.enableHPA,
		EnableVPA: sf.enableVPA,
	}, logger, rec)

	if untilTime > 0 {
		sim.RunUntilTime(untilTime)
	} else {
		sim.RunUntilNoEvents()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "simulation finished at t=%.3f\n", sim.Now())
	if err := sim.DumpStatistics(cmd.OutOrStdout()); err != nil {
		return err
	}

	if printMetrics {
		return dumpMetrics(cmd, registry)
	}
	return nil
}

func dumpMetrics(cmd *cobra.Command, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("simulate: gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.OutOrStdout(), mf); err != nil {
			return fmt.Errorf("simulate: encoding metrics: %w", err)
		}
	}
	return nil
}
