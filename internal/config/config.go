package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keato/btcpeer/internal/wire"
)

// cfgFile holds the --config flag value set by the CLI layer.
var cfgFile string

// Options collects the resolved configuration for one run, gathered from
// flags, environment variables, and an optional config file (in that
// order of increasing-to-decreasing precedence, per viper's usual
// resolution).
type Options struct {
	Network        wire.Network
	ConnectAddr    string
	UserAgent      string
	MetricsAddr    string
	LogLevel       string
	LogFile        string
	MaxPayloadSize uint32
}

// BindFlags registers every configuration flag on cmd and binds each to
// viper with a matching default, mirroring the flag-per-config-key
// pattern: every flag gets both a BindPFlag and a SetDefault call so the
// value resolves correctly whether it comes from the flag, environment,
// or config file.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: looks for btcpeer.yaml in the current directory)")

	cmd.Flags().String("network", "mainnet", "network to speak: mainnet, testnet, testnet3, namecoin, litecoin, litecoin-testnet")
	cmd.Flags().String("connect-addr", "", "host:port of the peer to dial")
	cmd.Flags().String("user-agent", "/btcpeer:0.1.0/", "user agent string advertised in the version handshake")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9090", "address to serve Prometheus metrics on")
	cmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().String("log-file", "", "log file to write to (default: stdout)")
	cmd.Flags().Uint32("max-payload-size", wire.DefaultMaxPayload, "maximum accepted payload size in bytes before a connection is dropped as oversize")

	viper.BindPFlag("network", cmd.Flags().Lookup("network"))
	viper.SetDefault("network", "mainnet")
	viper.BindPFlag("connect-addr", cmd.Flags().Lookup("connect-addr"))
	viper.SetDefault("connect-addr", "")
	viper.BindPFlag("user-agent", cmd.Flags().Lookup("user-agent"))
	viper.SetDefault("user-agent", "/btcpeer:0.1.0/")
	viper.BindPFlag("metrics-addr", cmd.Flags().Lookup("metrics-addr"))
	viper.SetDefault("metrics-addr", "127.0.0.1:9090")
	viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level"))
	viper.SetDefault("log-level", "info")
	viper.BindPFlag("log-file", cmd.Flags().Lookup("log-file"))
	viper.SetDefault("log-file", "")
	viper.BindPFlag("max-payload-size", cmd.Flags().Lookup("max-payload-size"))
	viper.SetDefault("max-payload-size", wire.DefaultMaxPayload)
}

// Init reads in a config file and environment variables, per the flag
// set registered by BindFlags. Call from cobra.OnInitialize.
func Init() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("btcpeer")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// Load resolves the bound flags/env/config values into an Options. It
// errors on an unrecognized --network value rather than silently
// defaulting to mainnet.
func Load() (Options, error) {
	name := viper.GetString("network")
	network, ok := wire.NetworkByName(name)
	if !ok {
		return Options{}, fmt.Errorf("config: unrecognized network %q (want one of: mainnet, testnet, testnet3, namecoin, litecoin, litecoin-testnet)", name)
	}
	return Options{
		Network:        network,
		ConnectAddr:    viper.GetString("connect-addr"),
		UserAgent:      viper.GetString("user-agent"),
		MetricsAddr:    viper.GetString("metrics-addr"),
		LogLevel:       viper.GetString("log-level"),
		LogFile:        viper.GetString("log-file"),
		MaxPayloadSize: viper.GetUint32("max-payload-size"),
	}, nil
}
