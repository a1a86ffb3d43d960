package probe

import (
	"net"
	"testing"
)

// TestIsPrivateIP_SSRFBlockList covers the private/reserved address classes the SSRF guard must reject:
// every address in this literal list must be classified as private.
func TestIsPrivateIP_SSRFBlockList(t *testing.T) {
	blocked := []string{
		"127.0.0.1",
		"10.0.0.1",
		"192.168.1.1",
		"169.254.1.1",
		"::1",
		"fc00::1",
		"172.16.0.5",
		"100.64.0.1",
		"::ffff:127.0.0.1",
	}
	for _, s := range blocked {
		ip := net.ParseIP(s)
		if ip == nil {
			t.Fatalf("test address %q failed to parse", s)
		}
		if !isPrivateIP(ip) {
			t.Fatalf("expected %s to be classified private/reserved", s)
		}
	}
}

func TestIsPrivateIP_PublicAddressesAllowed(t *testing.T) {
	allowed := []string{
		"93.184.216.34", // example.com
		"8.8.8.8",
		"2606:2800:220:1:248:1893:25c8:1946",
	}
	for _, s := range allowed {
		ip := net.ParseIP(s)
		if ip == nil {
			t.Fatalf("test address %q failed to parse", s)
		}
		if isPrivateIP(ip) {
			t.Fatalf("expected %s to be treated as publicly routable", s)
		}
	}
}

func TestSelfIPBlocked(t *testing.T) {
	if !selfIPBlocked(net.ParseIP("203.0.113.5"), "203.0.113.5") {
		t.Fatalf("expected configured SELF_IP to be blocked")
	}
	if selfIPBlocked(net.ParseIP("203.0.113.5"), "") {
		t.Fatalf("expected no block when SELF_IP is unset")
	}
}
