package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/irdkwmnsb/remotecam/internal/discovery"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/spf13/cobra"
)

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Answer discovery requests until interrupted",
	Long: `Listen on the discovery port and answer requests from endpoints of the
opposite kind. With --mdns the endpoint is also advertised over mDNS.`,
	RunE: runRespond,
}

func init() {
	respondCmd.Flags().String("kind", string(domain.KindSource), "Own endpoint kind (source or sink)")
	respondCmd.Flags().String("name", "", "Advertised device name (default: config deviceName or hostname)")
	respondCmd.Flags().String("listen", "", "UDP listen address (default: :<discovery port>)")
	respondCmd.Flags().Int("signalling-port", 0, "Advertised signalling port (default: from config)")
	respondCmd.Flags().Bool("mdns", false, "Also advertise over mDNS")
}

func runRespond(cmd *cobra.Command, args []string) error {
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
	name := deviceName(nameFlag, disc)

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = ":" + strconv.Itoa(disc.Port)
	}
	port, _ := cmd.Flags().GetInt("signalling-port")
	if port <= 0 {
		port = disc.SignallingPort
	}

	responder, err := discovery.NewResponder(discovery.ResponderConfig{
		ListenAddr:     listen,
		Kind:           kind,
		Name:           name,
		SignallingPort: port,
		Capabilities:   disc.Capabilities,
	})
	if err != nil {
		return err
	}
	if err := responder.Start(); err != nil {
		return err
	}
	defer responder.Stop()

	useMDNS, _ := cmd.Flags().GetBool("mdns")
	if useMDNS || disc.MDNS {
		advertiser, err := discovery.StartAdvertiser(discovery.MDNSConfig{
			Kind:           kind,
			Name:           name,
			SignallingPort: port,
			AppVersion:     disc.AppVersion,
			Capabilities:   disc.Capabilities,
		})
		if err != nil {
			slog.Warn("mDNS advertisement unavailable, UDP discovery only", "error", err)
		} else {
			defer advertiser.Stop()
			slog.Info("advertising over mDNS", "service", discovery.DefaultMDNSService, "name", name)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Responding as %s %q on %s (signalling port %d). Press Ctrl+C to stop.\n",
		kind, name, responder.LocalAddr(), port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("responder stopping")
	return nil
}
