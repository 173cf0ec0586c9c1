package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keato/btcpeer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "btcpeer",
	Short: "btcpeer dials a single Bitcoin-protocol peer and speaks its wire protocol",
	Long: `btcpeer opens one outbound connection to a peer, performs the
version/verack handshake, answers ping with pong, sends periodic keep-alive
pings, and counts the frames the peer sends in Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := config.Load()
		if err != nil {
			return err
		}
		return run(opts)
	},
}

// Execute is the single entrypoint called from main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(config.Init)
	config.BindFlags(rootCmd)
}
