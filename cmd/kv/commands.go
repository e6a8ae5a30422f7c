package kv

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/twinkle/cmd/util"
	"github.com/ValentinKolb/twinkle/rpc/common"
	"github.com/spf13/cobra"
	"time"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := rpcClient.Ping(); err != nil {
				return err
			}
			fmt.Printf("pong from %s in %s\n", util.GetClientConfig().Endpoint, util.FormatDuration(time.Since(start)))
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := rpcClient.Set([]byte(key), []byte(value)); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, err := rpcClient.Get([]byte(key))
			switch {
			case errors.Is(err, common.ErrCommandFailed):
				fmt.Printf("key=%s, found=false\n", key)
			case err != nil:
				return err
			default:
				fmt.Printf("key=%s, found=true, resp=%s\n", key, resp)
			}
			return nil
		},
	}
	unsetCmd = &cobra.Command{
		Use:   "unset [key]",
		Short: "Removes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := rpcClient.Unset([]byte(key)); err != nil {
				return err
			} else {
				fmt.Println("unset successfully")
			}
			return nil
		},
	}
)
