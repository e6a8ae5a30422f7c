package kv

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/twinkle/cmd/util"
	"github.com/ValentinKolb/twinkle/rpc/client"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

var (
	rpcClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations against a twinkle server",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: teardownKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(pingCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(unsetCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient opens the client and starts its transport
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()
	if err := common.InitLoggers(*config); err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcClient, err = client.Open(*config, t)
	if err != nil {
		return err
	}

	go func() {
		if err := rpcClient.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "transport stopped: %v\n", err)
		}
	}()

	return nil
}

// teardownKVClient closes the client and prints the metrics if requested
func teardownKVClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	err := rpcClient.Close()

	if viper.GetBool("metrics") {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}
	return err
}
