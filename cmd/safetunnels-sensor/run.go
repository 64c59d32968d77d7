package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RickyDenton/SafeTunnels/internal/admin"
	"github.com/RickyDenton/SafeTunnels/internal/config"
	"github.com/RickyDenton/SafeTunnels/internal/connectivity"
	"github.com/RickyDenton/SafeTunnels/internal/logging"
	"github.com/RickyDenton/SafeTunnels/internal/netcheck"
	"github.com/RickyDenton/SafeTunnels/internal/nodeid"
	"github.com/RickyDenton/SafeTunnels/internal/sim"
	"github.com/RickyDenton/SafeTunnels/internal/transport"
	"github.com/RickyDenton/SafeTunnels/internal/transport/mqtt3"
	"github.com/RickyDenton/SafeTunnels/internal/transport/mqtt5"
)

var (
	runSinks     sinkOptions
	runAdminAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sensor node",
	Long:  "run connects to the MQTT broker, samples the simulated quantities and publishes them until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFrom(cmd.Context())
		logger := logging.FromContext(cmd.Context())

		id, err := nodeid.Resolve(cfg.Node.ID, cfg.Node.DataDir)
		if err != nil {
			return err
		}
		logger = logger.With("node", id)

		writer, cleanup, err := newWriters(cfg, id, runSinks)
		if err != nil {
			return err
		}
		defer cleanup()

		machine := connectivity.NewMachine(connectivity.Config{
			NodeID:           id,
			Broker:           cfg.Broker.ConnectOptions(),
			CorrelationTopic: cfg.Topics.Correlation,
			ErrorsTopic:      cfg.Topics.Errors,
			OfflineLogEvery:  cfg.Timing.OfflineLogEvery,
		}, newEngine(cfg.Broker.Protocol, logger), reachability(cfg), logger)
		node := sim.NewNode(cfg, id, machine, writer, nil, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := cfg.Admin.Addr
		if runAdminAddr != "" {
			addr = runAdminAddr
		}
		if addr != "" {
			srv := admin.NewServer(node, logger)
			go func() {
				if err := srv.Start(ctx, addr); err != nil {
					logger.Error("admin server failed", "addr", addr, "err", err)
				}
			}()
		}

		err = node.Run(ctx)
		logger.Info("sensor node stopped")
		return err
	},
}

func init() {
	addSinkFlags(runCmd, &runSinks, "")
	runCmd.Flags().StringVar(&runAdminAddr, "admin-addr", "", "Admin HTTP listen address (overrides admin.addr)")
}

// newEngine selects the MQTT client library for protocol.
func newEngine(protocol string, logger *slog.Logger) transport.Engine {
	if protocol == config.ProtocolV5 {
		return mqtt5.NewEngine(logger)
	}
	return mqtt3.NewEngine(logger)
}

// reachability selects the network check configured for the node.
func reachability(cfg *config.Config) connectivity.Reachability {
	if cfg.Network.Mode == "static" {
		return netcheck.Static(cfg.Network.Reachable)
	}
	return netcheck.New(cfg.Broker.ConnectOptions().Address())
}

var _ admin.Controller = (*sim.Node)(nil)
