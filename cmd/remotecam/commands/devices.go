package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/endpoint"
	"github.com/spf13/cobra"
)

const defaultDevicesTimeout = 10 * time.Second

var devicesCmd = &cobra.Command{
	Use:   "devices <signalling-url>",
	Short: "List free endpoints registered with a signalling broker",
	Long: `Connect to the broker, register briefly, and print the free endpoints
of the opposite kind. The URL may be http://host:port or ws://host:port.`,
	Args: cobra.ExactArgs(1),
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().String("kind", string(domain.KindSink), "Kind to register as (source or sink)")
	devicesCmd.Flags().String("name", "", "Name to register with")
	devicesCmd.Flags().Duration("timeout", 0, "Give up after this long (default 10s)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	kindFlag, _ := cmd.Flags().GetString("kind")
	kind, err := domain.ParseKind(kindFlag)
	if err != nil {
		return fmt.Errorf("--kind: %w", err)
	}
	nameFlag, _ := cmd.Flags().GetString("name")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultDevicesTimeout
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := endpoint.Dial(ctx, endpoint.Config{SignallingURL: args[0]})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Register(kind, deviceName(nameFlag, cfg.Discovery)); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	msg, err := client.WaitFor(ctx, api.EndpointMessageEventDevicesList)
	if err != nil {
		return fmt.Errorf("waiting for devices list: %w", err)
	}
	writeBrokerDevices(cmd.OutOrStdout(), msg.Devices)
	return nil
}

func writeBrokerDevices(w io.Writer, devices []api.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No free devices registered.")
		return
	}
	fmt.Fprintf(w, "Free devices (%d):\n\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(w, "  %s (%s)\n", d.Name, d.Kind)
		fmt.Fprintf(w, "    id: %s\n", d.ID)
	}
}
