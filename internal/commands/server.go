package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"evalgo.org/foundry/internal/api"
	"evalgo.org/foundry/internal/artifact"
	"evalgo.org/foundry/internal/engine"
	"evalgo.org/foundry/internal/extension"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Foundry host",
	Long:  `Start the host engine, hand-shake with the configured controllers, and serve the operational endpoints`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringSlice("controller", nil, "controller endpoint (repeatable)")
	serverCmd.Flags().Bool("sync-deployment", false, "block startup until the controller handshake completes")
	serverCmd.Flags().String("state-driver", "", "state store driver (file, bolt)")
	serverCmd.Flags().String("state-path", "", "state directory or database file")

	// These should never fail as flags are defined above
	_ = viper.BindPFlag("controller.endpoints", serverCmd.Flags().Lookup("controller"))        //nolint:errcheck
	_ = viper.BindPFlag("server.sync_deployment", serverCmd.Flags().Lookup("sync-deployment")) //nolint:errcheck
	_ = viper.BindPFlag("state.driver", serverCmd.Flags().Lookup("state-driver"))              //nolint:errcheck
	_ = viper.BindPFlag("state.path", serverCmd.Flags().Lookup("state-path"))                  //nolint:errcheck
}

func runServer(cmd *cobra.Command, args []string) error {
	fmt.Println("Starting Foundry host")
	fmt.Printf("   Server ID: %s\n", cfg.Server.ID)
	fmt.Printf("   Location:  %s\n", cfg.Server.Location)
	fmt.Printf("   State:     %s (%s)\n", cfg.State.Path, cfg.State.Driver)
	fmt.Printf("   Controllers: %d configured\n", len(cfg.Controller.Endpoints))
	fmt.Println()

	// The in-process runtime serves both roles until a remote resolver is
	// plugged in.
	runtime := artifact.NewMemoryRuntime()

	eng, err := engine.FromConfig(cfg, runtime, runtime, extension.Discover())
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	if err := eng.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	server := api.New(cfg, eng)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("Received %s, shutting down\n", sig)
	case err := <-errCh:
		if err != nil {
			eng.Destroy()
			return err
		}
	}

	if err := server.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error shutting down api server: %v\n", err)
	}
	eng.Destroy()
	return nil
}
