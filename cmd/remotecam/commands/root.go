package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/discovery"
	"github.com/irdkwmnsb/remotecam/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

var rootCmd = &cobra.Command{
	Use:   "remotecam",
	Short: "remotecam - LAN camera discovery and signalling tools",
	Long: `remotecam finds camera sources and viewing sinks on the local network
and talks to the signalling broker that pairs them.

Use "remotecam [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(utils.NewLogger(os.Stderr, level))
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config directory with discovery.yaml etc. (default: built-in defaults)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(devicesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "remotecam\n")
		fmt.Fprintf(out, "  Version:   %s\n", Version)
		fmt.Fprintf(out, "  Commit:    %s\n", Commit)
		fmt.Fprintf(out, "  Protocol:  %s.x\n", discovery.SchemaMajor)
		fmt.Fprintf(out, "  Platform:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// loadConfig returns the config from --config, or the defaults when the flag
// is empty.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		cfg := config.DefaultAppConfig()
		return &cfg, nil
	}
	cfg, err := config.LoadAppConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", dir, err)
	}
	return cfg, nil
}

// deviceName picks the advertised name: flag, then config, then hostname.
func deviceName(flag string, cfg config.DiscoveryConfig) string {
	if flag != "" {
		return flag
	}
	if cfg.DeviceName != "" {
		return cfg.DeviceName
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "remotecam"
}
