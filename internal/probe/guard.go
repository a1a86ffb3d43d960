package probe

import "net"

// isPrivateIP reports whether ip falls in a private/reserved range that the
// SSRF guard must reject: loopback, link-local,
// multicast, RFC1918, CGNAT, unique-local v6, and v4-mapped v6 of any of
// those.
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		return isPrivateIPv4(v4)
	}
	return isPrivateIPv6(ip)
}

func isPrivateIPv4(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	private4 := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10", // CGNAT
	}
	for _, cidr := range private4 {
		_, block, _ := net.ParseCIDR(cidr)
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

func isPrivateIPv6(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		// v4-mapped v6 of a private/reserved address
		return isPrivateIPv4(v4)
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	_, uniqueLocal, _ := net.ParseCIDR("fc00::/7")
	return uniqueLocal.Contains(ip)
}

// selfIPBlocked reports whether ip matches the process's own configured
// SELF_IP, an additional reserved address alongside the private ranges.
func selfIPBlocked(ip net.IP, selfIP string) bool {
	if selfIP == "" {
		return false
	}
	self := net.ParseIP(selfIP)
	if self == nil {
		return false
	}
	return ip.Equal(self)
}
