// Package netutil holds small network-address helpers shared by the
// realm and world services, both of which hand clients an IPv4
// address/port pair to connect to next.
package netutil

import (
	"encoding/binary"
	"fmt"
	"net"
)

// IPv4ToUint32 resolves host to an IPv4 address and returns it in
// network byte order, the wire shape spec.md §6 ServerRealmInfo and
// ServerNewRealm both use for their address fields.
func IPv4ToUint32(host string) (uint32, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return 0, fmt.Errorf("resolving %q: %w", host, err)
		}
		ip = ips[0]
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%q does not resolve to an IPv4 address", host)
	}
	return binary.BigEndian.Uint32(v4), nil
}
