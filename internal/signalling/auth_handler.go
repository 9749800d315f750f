package signalling

import (
	"crypto/subtle"
	"log/slog"
	"net/netip"

	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/sockets"
)

type AuthHandler struct {
	config func() *config.AppConfig
}

func NewAuthHandler(cfg func() *config.AppConfig) *AuthHandler {
	return &AuthHandler{config: cfg}
}

// CheckAdminCredential accepts anything when no credential is configured.
func (h *AuthHandler) CheckAdminCredential(credential string) bool {
	expected := h.config().Security.AdminCredential
	if expected == nil {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(*expected), []byte(credential)) == 1
}

func (h *AuthHandler) IsAdminIP(addrPort string) bool {
	ip, err := netip.ParseAddrPort(addrPort)
	if err != nil {
		slog.Error("failed to parse IP address", "addr", addrPort, "error", err)
		return false
	}

	for _, n := range h.config().Security.AdminsRawNetworks {
		if n.Contains(ip.Addr().Unmap()) {
			return true
		}
	}
	return false
}

// AuthenticateAdmin runs the admin handshake on socket: whitelist check,
// credential request, credential check.
func (h *AuthHandler) AuthenticateAdmin(socket sockets.Socket) bool {
	addr := socket.RemoteAddr()

	if !h.IsAdminIP(addr) {
		slog.Warn("IP not in whitelist", "addr", addr)
		accessMessage := "Forbidden. IP address black listed"
		_ = socket.WriteJSON(api.AdminMessage{
			Event:         api.AdminMessageEventAuthFailed,
			AccessMessage: &accessMessage,
		})
		return false
	}

	if err := socket.WriteJSON(api.AdminMessage{Event: api.AdminMessageEventAuthRequest}); err != nil {
		return false
	}

	var message api.AdminMessage
	if err := socket.ReadJSON(&message); err != nil {
		slog.Debug("disconnected during auth", "addr", addr)
		return false
	}

	if message.Event != api.AdminMessageEventAuth || message.Credential == nil || !h.CheckAdminCredential(*message.Credential) {
		accessMessage := "Forbidden. Incorrect credential"
		_ = socket.WriteJSON(api.AdminMessage{
			Event:         api.AdminMessageEventAuthFailed,
			AccessMessage: &accessMessage,
		})
		slog.Warn("authentication failed", "addr", addr)
		return false
	}

	return true
}
