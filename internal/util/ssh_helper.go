package util

import (
	"fmt"
	"io"
	"net"

	log "github.com/sirupsen/logrus"
)

// outboundIP returns the local address used for outbound traffic.
// No packet is sent; dialing UDP only selects a route.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		log.Debugf("outbound ip lookup failed: %v", err)
		return "<server-ip>"
	}
	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Debugf("close udp probe: %v", errClose)
		}
	}()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "<server-ip>"
}

// PrintSSHTunnelInstructions tells a user on a remote shell how to forward the
// loopback callback port so the browser on their own machine can reach it.
func PrintSSHTunnelInstructions(w io.Writer, port int) {
	if w == nil || port <= 0 {
		return
	}
	ip := outboundIP()
	border := "================================================================================"
	_, _ = fmt.Fprintln(w, "To sign in from a remote machine, forward the callback port first.")
	_, _ = fmt.Fprintln(w, border)
	_, _ = fmt.Fprintln(w, "  Run on your local machine (NOT the server):")
	_, _ = fmt.Fprintf(w, "  ssh -L %d:127.0.0.1:%d <user>@%s -p 22\n", port, port, ip)
	_, _ = fmt.Fprintln(w, border)
}
