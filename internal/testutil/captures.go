// Package testutil provides sample routing-table captures and helpers
// for unit and integration tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// The sample captures describe a four-router topology:
//
//	        R2 (iosxe)
//	      /           \
//	R1 (ios)           R4 (ios) -- 192.168.204.0/24
//	      \           /
//	        R3 (asa)
//
// R1 reaches 192.168.204.0/24 over two equal-cost paths, through R2 and
// R3. R1's default points at R2, and R2 sends 172.16.0.0/16 back to R1.

// CaptureR1 is an IOS "show ip route" with an ECMP entry.
const CaptureR1 = `Codes: L - local, C - connected, S - static, R - RIP, M - mobile, B - BGP
       D - EIGRP, EX - EIGRP external, O - OSPF, IA - OSPF inter area
       N1 - OSPF NSSA external type 1, N2 - OSPF NSSA external type 2
       E1 - OSPF external type 1, E2 - OSPF external type 2
       i - IS-IS, su - IS-IS summary, L1 - IS-IS level-1, L2 - IS-IS level-2
       * - candidate default, U - per-user static route, o - ODR
       P - periodic downloaded static route, + - replicated route

Gateway of last resort is 10.0.12.2 to network 0.0.0.0

S*    0.0.0.0/0 [1/0] via 10.0.12.2
      10.0.0.0/8 is variably subnetted, 4 subnets, 2 masks
C        10.0.12.0/30 is directly connected, GigabitEthernet0/0
L        10.0.12.1/32 is directly connected, GigabitEthernet0/0
C        10.0.13.0/30 is directly connected, GigabitEthernet0/1
L        10.0.13.1/32 is directly connected, GigabitEthernet0/1
O     192.168.204.0/24 [110/3] via 10.0.12.2, 00:10:12, GigabitEthernet0/0
                       [110/3] via 10.0.13.2, 00:10:12, GigabitEthernet0/1
`

// CaptureR2 is an IOS-XE "show ip route".
const CaptureR2 = `Codes: L - local, C - connected, S - static, R - RIP, M - mobile, B - BGP
       D - EIGRP, EX - EIGRP external, O - OSPF, IA - OSPF inter area
       a - application route
       + - replicated route, % - next hop override, p - overrides from PfR

Gateway of last resort is not set

      10.0.0.0/8 is variably subnetted, 4 subnets, 2 masks
C        10.0.12.0/30 is directly connected, GigabitEthernet1
L        10.0.12.2/32 is directly connected, GigabitEthernet1
C        10.0.24.0/30 is directly connected, GigabitEthernet2
L        10.0.24.1/32 is directly connected, GigabitEthernet2
S     172.16.0.0/16 [1/0] via 10.0.12.1
S     192.168.204.0/24 [1/0] via 10.0.24.2
`

// CaptureR3 is an ASA "show route" using dotted masks and nameif names.
const CaptureR3 = `Codes: L - local, C - connected, S - static, R - RIP, M - mobile, B - BGP
       D - EIGRP, EX - EIGRP external, O - OSPF, IA - OSPF inter area
       * - candidate default, U - per-user static route, o - ODR
       P - periodic downloaded static route, + - replicated route

Gateway of last resort is 10.0.13.1 to network 0.0.0.0

S*       0.0.0.0 0.0.0.0 [1/0] via 10.0.13.1, outside
C        10.0.13.0 255.255.255.252 is directly connected, outside
L        10.0.13.2 255.255.255.255 is directly connected, outside
C        10.0.34.0 255.255.255.252 is directly connected, inside
L        10.0.34.1 255.255.255.255 is directly connected, inside
O        192.168.204.0 255.255.255.0 [110/2] via 10.0.34.2, 0:05:11, inside
`

// CaptureR4 is an IOS "show ip route" owning the 192.168.204.0/24 LAN.
const CaptureR4 = `Gateway of last resort is not set

      10.0.0.0/8 is variably subnetted, 5 subnets, 3 masks
S        10.0.0.0/8 [1/0] via 10.0.24.1
C        10.0.24.0/30 is directly connected, GigabitEthernet0/0
L        10.0.24.2/32 is directly connected, GigabitEthernet0/0
C        10.0.34.0/30 is directly connected, GigabitEthernet0/1
L        10.0.34.2/32 is directly connected, GigabitEthernet0/1
      192.168.204.0/24 is variably subnetted, 2 subnets, 2 masks
C        192.168.204.0/24 is directly connected, Vlan204
L        192.168.204.1/32 is directly connected, Vlan204
`

// Capture describes one sample device.
type Capture struct {
	ID       string
	Platform string
	Text     string
}

// Topology returns the sample captures in device-id order.
func Topology() []Capture {
	return []Capture{
		{ID: "R1", Platform: "ios", Text: CaptureR1},
		{ID: "R2", Platform: "iosxe", Text: CaptureR2},
		{ID: "R3", Platform: "asa", Text: CaptureR3},
		{ID: "R4", Platform: "ios", Text: CaptureR4},
	}
}

// WriteCaptures writes each capture to dir as <id>.txt and returns the
// file paths in device-id order.
func WriteCaptures(t *testing.T, dir string, captures []Capture) []string {
	t.Helper()

	var paths []string
	for _, c := range captures {
		p := filepath.Join(dir, c.ID+".txt")
		if err := os.WriteFile(p, []byte(c.Text), 0644); err != nil {
			t.Fatalf("writing capture %s: %v", p, err)
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
