package security

import "net"

// IsPublicBind reports whether host would expose the listener beyond the
// local machine. Loopback addresses and names are private; anything else
// (0.0.0.0, ::, a LAN IP, a hostname) counts as public and requires either an
// explicit allow flag or an active tunnel provider.
func IsPublicBind(host string) bool {
	switch host {
	case "", "localhost":
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !ip.IsLoopback()
	}
	// Unresolvable names are treated as public; refusing to guess is safer.
	return true
}
