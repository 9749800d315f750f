package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/discovery"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find endpoints of the opposite kind on the local network",
	Long: `Run one discovery round: probe every host of the local /24 (or the
addresses given with --target) and list the endpoints that answered.
When nothing answers, pass the endpoint address with --target instead.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().String("kind", string(domain.KindSink), "Own endpoint kind (source or sink)")
	discoverCmd.Flags().String("name", "", "Device name sent in requests")
	discoverCmd.Flags().StringSlice("target", nil, "Probe these ip or ip:port addresses instead of the subnet")
	discoverCmd.Flags().Duration("window", 0, "Discovery window (default: from config)")
	discoverCmd.Flags().Bool("mdns", false, "Also browse mDNS")
	discoverCmd.Flags().Bool("json", false, "Print devices as JSON")
}

// initiatorConfig merges discovery config with command flags.
func initiatorConfig(disc config.DiscoveryConfig, kind domain.Kind, name string, targets []string, window time.Duration) discovery.InitiatorConfig {
	if window <= 0 {
		window = disc.WindowDuration()
	}
	return discovery.InitiatorConfig{
		Kind:           kind,
		Name:           name,
		AppVersion:     disc.AppVersion,
		Capabilities:   disc.Capabilities,
		Port:           disc.Port,
		Window:         window,
		ReadTimeout:    disc.ReadTimeoutDuration(),
		FallbackPrefix: disc.FallbackPrefix,
		Targets:        targets,
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	disc := cfg.Discovery

	kindFlag, _ := cmd.Flags().GetString("kind")
	kind, err := domain.ParseKind(kindFlag)
	if err != nil {
		return fmt.Errorf("--kind: %w", err)
	}
	nameFlag, _ := cmd.Flags().GetString("name")
	targets, _ := cmd.Flags().GetStringSlice("target")
	window, _ := cmd.Flags().GetDuration("window")
	useMDNS, _ := cmd.Flags().GetBool("mdns")
	asJSON, _ := cmd.Flags().GetBool("json")

	initiator, err := discovery.NewInitiator(initiatorConfig(disc, kind, deviceName(nameFlag, disc), targets, window))
	if err != nil {
		return err
	}
	defer initiator.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	devices, err := initiator.Discover(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if useMDNS || disc.MDNS {
		found, err := discovery.Browse(ctx, discovery.MDNSConfig{Kind: kind, AppVersion: disc.AppVersion})
		if err != nil {
			slog.Warn("mDNS browse failed", "error", err)
		}
		devices = mergeDevices(devices, found)
	}

	if asJSON {
		return writeDevicesJSON(cmd.OutOrStdout(), devices)
	}
	writeDevices(cmd.OutOrStdout(), devices)
	return nil
}

// mergeDevices appends extra devices whose address is not already listed.
func mergeDevices(devices, extra []discovery.DiscoveredDevice) []discovery.DiscoveredDevice {
	for _, d := range extra {
		dup := false
		for _, existing := range devices {
			if existing.Addr == d.Addr {
				dup = true
				break
			}
		}
		if !dup {
			devices = append(devices, d)
		}
	}
	return devices
}

func writeDevices(w io.Writer, devices []discovery.DiscoveredDevice) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found.")
		fmt.Fprintln(w, "\nEnter the address manually: remotecam discover --target <ip>")
		return
	}
	fmt.Fprintf(w, "Found %d device(s):\n\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(w, "  %s (%s)\n", d.Name, d.Kind)
		fmt.Fprintf(w, "    signalling: %s\n", d.SignallingAddr())
		if len(d.Capabilities) > 0 {
			fmt.Fprintf(w, "    capabilities: %s\n", strings.Join(d.Capabilities, ", "))
		}
	}
}

type deviceJSON struct {
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Address      string   `json:"address"`
	Port         int      `json:"port"`
	Capabilities []string `json:"capabilities"`
}

func writeDevicesJSON(w io.Writer, devices []discovery.DiscoveredDevice) error {
	out := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceJSON{
			Name:         d.Name,
			Kind:         string(d.Kind),
			Address:      d.Addr.String(),
			Port:         d.Port,
			Capabilities: d.Capabilities,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
