package cmd

import (
	"fmt"
	"github.com/ValentinKolb/twinkle/cmd/kv"
	"github.com/ValentinKolb/twinkle/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.2.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "twinkle",
		Short: "client for twinkle key-value servers",
		Long: fmt.Sprintf(`twinkle (v%s)

A client for the twinkle key-value protocol, a request/response
protocol on top of UDP. Lost datagrams are hidden by retries.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of twinkle",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("twinkle v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "udp", util.WrapString("transport to use (udp)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("log level (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
