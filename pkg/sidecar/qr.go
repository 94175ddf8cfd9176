package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/mdp/qrterminal/v3"
)

// MobilePairingQR is everything a phone needs to talk to the gateway over the
// LAN. QRValue is the exact string encoded in the QR code.
type MobilePairingQR struct {
	GatewayURL string `json:"gatewayUrl"`
	Token      string `json:"token"`
	QRValue    string `json:"qrValue"`
}

// GenerateMobilePairingQR mints a dedicated bearer token for a mobile device
// and packages it with the gateway's LAN address. The desktop token must
// still be valid; port is the gateway's listen port.
func (g *GatewayClient) GenerateMobilePairingQR(ctx context.Context, port int) (*MobilePairingQR, error) {
	if err := g.WaitReady(ctx); err != nil {
		return nil, err
	}
	desktopToken := LoadGatewayToken()
	if desktopToken == "" {
		return nil, fmt.Errorf("desktop gateway token not found; restart or pair again")
	}
	if !g.TokenValid(ctx, desktopToken) {
		return nil, fmt.Errorf("desktop gateway token is no longer valid; restart to refresh pairing")
	}

	mobileToken, err := g.MintToken(ctx, desktopToken)
	if err != nil {
		return nil, err
	}

	ip := resolveLocalLANIP()
	if ip == "" {
		ip = "127.0.0.1"
	}
	gatewayURL := fmt.Sprintf("http://%s:%d", ip, port)
	value, err := json.Marshal(map[string]string{
		"gatewayUrl": gatewayURL,
		"token":      mobileToken,
	})
	if err != nil {
		return nil, err
	}
	return &MobilePairingQR{
		GatewayURL: gatewayURL,
		Token:      mobileToken,
		QRValue:    string(value),
	}, nil
}

// Render draws the QR code to w as half-block terminal art.
func (q *MobilePairingQR) Render(w io.Writer) {
	qrterminal.GenerateHalfBlock(q.QRValue, qrterminal.L, w)
}

// resolveLocalLANIP finds the outbound interface address by opening a
// connected UDP socket toward a public address. No packet is sent. A loopback
// result means there is no LAN route and pairing by QR will not work.
func resolveLocalLANIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() {
		return ""
	}
	return addr.IP.String()
}
