package nobo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// DefaultDiscoveryTimeout is the listening window used when the context has
// no deadline.
const DefaultDiscoveryTimeout = 3 * time.Second

// DiscoveryResult is a hub that announced itself on the local network.
type DiscoveryResult struct {
	IP     string
	Serial string
}

// Discover listens for hub beacons on the discovery port.
// The context controls the listening window. If the context has no
// deadline, DefaultDiscoveryTimeout is applied. Finding nothing is not an
// error.
func Discover(ctx context.Context) ([]DiscoveryResult, error) {
	return DiscoverOn(ctx, fmt.Sprintf(":%d", DiscoveryPort))
}

// DiscoverOn is Discover bound to a specific UDP address.
func DiscoverOn(ctx context.Context, addr string) ([]DiscoveryResult, error) {
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for beacons: %w", err)
	}
	defer pc.Close()

	return collectBeacons(ctx, pc)
}

// collectBeacons reads datagrams from pc until the context deadline (or
// DefaultDiscoveryTimeout) passes. Later beacons from the same address
// replace earlier ones; results keep first-seen order.
func collectBeacons(ctx context.Context, pc net.PacketConn) ([]DiscoveryResult, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDiscoveryTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()
	if err := pc.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	// Unblock the read as soon as the context is canceled.
	stop := context.AfterFunc(ctx, func() {
		pc.SetReadDeadline(time.Now())
	})
	defer stop()

	var order []string
	serials := make(map[string]string)
	buf := make([]byte, 1024)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if (errors.As(err, &ne) && ne.Timeout()) || ctx.Err() != nil {
				break
			}
			return nil, fmt.Errorf("read beacon: %w", err)
		}
		serial, ok := parseBeacon(buf[:n])
		if !ok {
			continue
		}
		ip := hostOf(from)
		if _, seen := serials[ip]; !seen {
			order = append(order, ip)
		}
		serials[ip] = serial
	}

	results := make([]DiscoveryResult, 0, len(order))
	for _, ip := range order {
		results = append(results, DiscoveryResult{IP: ip, Serial: serials[ip]})
	}
	return results, nil
}

// parseBeacon extracts the serial from a discovery payload.
func parseBeacon(payload []byte) (string, bool) {
	s := string(payload)
	if !strings.HasPrefix(s, DiscoveryMarker) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(s, DiscoveryMarker)), true
}

func hostOf(addr net.Addr) string {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
