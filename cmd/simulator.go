package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/machine-monitor/internal/simulator"
	"procodus.dev/machine-monitor/pkg/metrics"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the fleet simulator",
	Long: `Run the fleet simulator that:
- Seeds demo machines through the monitor API
- Posts simulated vital readings on an interval
- Occasionally injects abnormal readings to exercise alerting`,
	RunE: runSimulator,
}

func init() {
	rootCmd.AddCommand(simulatorCmd)

	// Simulator-specific flags
	simulatorCmd.Flags().String("api-url", "http://localhost:8080", "Monitor API base URL")
	simulatorCmd.Flags().Int("machine-count", 5, "Number of demo machines to seed")
	simulatorCmd.Flags().Duration("interval", 5*time.Second, "Interval between posted readings per machine")

	// Bind flags to viper
	_ = viper.BindPFlag("simulator.api_url", simulatorCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("simulator.machine_count", simulatorCmd.Flags().Lookup("machine-count"))
	_ = viper.BindPFlag("simulator.interval", simulatorCmd.Flags().Lookup("interval"))
}

func runSimulator(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting simulator service")

	config := &simulator.ServerConfig{
		Logger:       logger,
		APIBaseURL:   viper.GetString("simulator.api_url"),
		MachineCount: viper.GetInt("simulator.machine_count"),
		Interval:     viper.GetDuration("simulator.interval"),
		Metrics:      metrics.NewSimulatorMetrics("machine_monitor"),
	}

	server, err := simulator.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator", "error", err)
		return err
	}

	logger.Info("simulator configuration",
		"api_url", config.APIBaseURL,
		"machine_count", config.MachineCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator error", "error", err)
		return err
	}

	logger.Info("simulator stopped")
	return nil
}
