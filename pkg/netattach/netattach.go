// Package netattach waits for the device's network attachment to complete.
//
// On an embedded device the link (typically a managed wireless interface)
// comes up some time after boot; the echo server must not bind its route
// until the device actually holds an address. Wait is the single blocking
// collaborator operation: it polls the interface table until a global
// unicast address appears, reports that address, or fails when the context
// expires. The caller owns the retry policy: Wait returns an error, it
// never panics or exits.
package netattach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"
)

// ErrNoAddress indicates no global unicast address appeared before the
// context expired.
var ErrNoAddress = errors.New("no global unicast address assigned")

// ErrInterfaceNotFound indicates the named interface does not exist.
var ErrInterfaceNotFound = errors.New("interface not found")

// DefaultPollInterval is the delay between interface table polls.
const DefaultPollInterval = 500 * time.Millisecond

// Config controls the attachment wait.
type Config struct {
	// Interface restricts the wait to one named interface. Empty means any
	// non-loopback interface.
	Interface string
	// PollInterval is the delay between polls (default 500ms).
	PollInterval time.Duration
}

// ifaceState is one interface's view of the attachment probe.
type ifaceState struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Addr
}

// listInterfaces is swapped out in tests.
var listInterfaces = systemInterfaces

func systemInterfaces() ([]ifaceState, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	states := make([]ifaceState, 0, len(ifaces))
	for _, iface := range ifaces {
		st := ifaceState{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err == nil {
			for _, a := range addrs {
				ipNet, ok := a.(*net.IPNet)
				if !ok {
					continue
				}
				if addr, ok := netip.AddrFromSlice(ipNet.IP); ok {
					st.Addrs = append(st.Addrs, addr.Unmap())
				}
			}
		}
		states = append(states, st)
	}
	return states, nil
}

// Wait blocks until a global unicast address is assigned, then reports it.
// It is consumed once at startup, before the server binds its route.
func Wait(ctx context.Context, cfg Config, log *slog.Logger) (netip.Addr, error) {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		addr, err := probe(cfg.Interface)
		if err == nil {
			log.Info("network attached", "addr", addr.String())
			return addr, nil
		}
		if errors.Is(err, ErrInterfaceNotFound) {
			log.Debug("waiting for interface", "interface", cfg.Interface)
		}

		select {
		case <-ctx.Done():
			return netip.Addr{}, fmt.Errorf("%w: %w", ErrNoAddress, ctx.Err())
		case <-ticker.C:
		}
	}
}

// probe scans the interface table once for a usable address.
func probe(ifaceName string) (netip.Addr, error) {
	ifaces, err := listInterfaces()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("list interfaces: %w", err)
	}

	found := ifaceName == ""
	for _, iface := range ifaces {
		if ifaceName != "" {
			if iface.Name != ifaceName {
				continue
			}
			found = true
		} else if iface.Loopback {
			continue
		}
		if !iface.Up {
			continue
		}

		for _, addr := range iface.Addrs {
			if addr.IsGlobalUnicast() && !addr.IsLinkLocalUnicast() {
				return addr, nil
			}
		}
	}

	if !found {
		return netip.Addr{}, fmt.Errorf("%w: %s", ErrInterfaceNotFound, ifaceName)
	}
	return netip.Addr{}, ErrNoAddress
}
