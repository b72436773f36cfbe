package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cardinal-Cryptography/alephsync/cmd"
	"github.com/Cardinal-Cryptography/alephsync/engine/synchronization"
	"github.com/Cardinal-Cryptography/alephsync/module"
	synccore "github.com/Cardinal-Cryptography/alephsync/module/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/module/session"
	"github.com/Cardinal-Cryptography/alephsync/module/verifier"
)

// Overridden at build time through -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "alephsync",
		Short:        "alephsync keeps a node's view of the finalized chain in sync with its peers",
		SilenceUsage: true,
	}
	root.AddCommand(runCommand(), versionCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCommand() *cobra.Command {
	builder := cmd.NewNodeBuilder()

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the synchronization node",
		Run: func(_ *cobra.Command, _ []string) {
			builder.
				Component("metrics server", metricsServer).
				Component("synchronization engine", syncEngine).
				Run()
		},
	}
	builder.BindFlags(runCmd.Flags())

	return runCmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the node",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("alephsync %s (commit %s)\n", version, commit)
		},
	}
}

func metricsServer(nb *cmd.NodeBuilder) (module.ReadyDoneAware, error) {
	return metrics.NewServer(nb.Logger, nb.BaseConfig.MetricsPort, nb.BaseConfig.Profiler), nil
}

func syncEngine(nb *cmd.NodeBuilder) (module.ReadyDoneAware, error) {
	core, err := synccore.New(nb.Logger, synccore.DefaultConfig(), nb.ChainSyncMetrics)
	if err != nil {
		return nil, fmt.Errorf("could not create chain sync core: %w", err)
	}

	sessions, err := session.NewBoundaryInfo(nb.BaseConfig.SessionPeriod)
	if err != nil {
		return nil, fmt.Errorf("could not create session info: %w", err)
	}

	// the accepting verifier trusts every proof; replace it with a
	// committee-backed verifier before talking to untrusted peers
	nb.Logger.Warn().Msg("running with the accepting justification verifier")

	eng, err := synchronization.New(
		nb.Logger,
		nb.EngineMetrics,
		nb.ForestMetrics,
		nb.ResponderMetrics,
		nb.Network,
		nb.Me,
		nb.State,
		nb.State,
		nb.State,
		verifier.NewAccepting(),
		sessions,
		core,
		synchronization.WithBroadcastInterval(nb.BaseConfig.BroadcastInterval),
		synchronization.WithScanInterval(nb.BaseConfig.ScanInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create synchronization engine: %w", err)
	}

	nb.Distributor.AddConsumer(eng)

	return eng, nil
}
