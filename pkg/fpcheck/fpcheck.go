// Package fpcheck verifies that a switch has programmed the OSPF
// field-processor (FP) entries in its ASIC.
//
// The check runs the switch's FP debug dump for the OSPF group and counts
// lines that carry a given field marker together with an expected value. It
// expects two IP protocol entries for OSPF (0x59) and exactly one destination
// IP and one destination MAC entry each for the all-routers (224.0.0.5) and
// designated-routers (224.0.0.6) multicast groups.
//
// The dump format is undocumented; the expected counts are fixed facts of the
// platform rather than something derived from the output.
package fpcheck

import (
	"errors"
	"fmt"
	"strings"
)

// Command dumps the OSPF FP group. It must run in the bash shell.
const Command = "ovs-appctl plugin/debug fp ospf-group"

// Expected values.
const (
	OSPFProtocol         = "0x59"
	AllRoutersIP         = "224.0.0.5"
	AllRoutersMAC        = "1:0:5e:0:0:5"
	DesignatedRoutersIP  = "224.0.0.6"
	DesignatedRoutersMAC = "1:0:5e:0:0:6"
)

// Field markers in the FP dump.
const (
	MarkerProtocol = "IpProtocol"
	MarkerDstIP    = "DstIp"
	MarkerDstMAC   = "DstMac"
)

// Expected entry counts.
const (
	WantProtocolEntries = 2
	WantGroupEntries    = 1
)

// CheckName identifies this check in logs, reports and metrics.
const CheckName = "ospf-fp"

// IncompatiblePlatforms lists platforms the check cannot run on. The
// container platform has no ASIC to program.
var IncompatiblePlatforms = []string{"docker"}

// Applicable reports whether the check can run on platform.
func Applicable(platform string) bool {
	for _, p := range IncompatiblePlatforms {
		if p == platform {
			return false
		}
	}
	return true
}

// Counts holds the number of dump lines matching each entry.
type Counts struct {
	Protocol             int
	AllRoutersIP         int
	AllRoutersMAC        int
	DesignatedRoutersIP  int
	DesignatedRoutersMAC int
}

// Entry is a named count, in a stable order for logging and metrics.
type Entry struct {
	Name  string
	Count int
}

// Entries returns the counts as named entries.
func (c Counts) Entries() []Entry {
	return []Entry{
		{"protocol", c.Protocol},
		{"all_routers_ip", c.AllRoutersIP},
		{"all_routers_mac", c.AllRoutersMAC},
		{"designated_routers_ip", c.DesignatedRoutersIP},
		{"designated_routers_mac", c.DesignatedRoutersMAC},
	}
}

// Scan counts, for each entry, the lines that contain both the entry's field
// marker and its expected value. A line can count toward several entries.
func Scan(output string) Counts {
	var c Counts
	for _, line := range strings.Split(output, "\n") {
		if matches(line, MarkerProtocol, OSPFProtocol) {
			c.Protocol++
		}
		if matches(line, MarkerDstIP, AllRoutersIP) {
			c.AllRoutersIP++
		}
		if matches(line, MarkerDstMAC, AllRoutersMAC) {
			c.AllRoutersMAC++
		}
		if matches(line, MarkerDstIP, DesignatedRoutersIP) {
			c.DesignatedRoutersIP++
		}
		if matches(line, MarkerDstMAC, DesignatedRoutersMAC) {
			c.DesignatedRoutersMAC++
		}
	}
	return c
}

func matches(line, marker, value string) bool {
	return strings.Contains(line, marker) && strings.Contains(line, value)
}

// ErrAssertion is wrapped by every AssertionError.
var ErrAssertion = errors.New("FP assertion failed")

// AssertionError reports the first checkpoint the dump failed.
type AssertionError struct {
	Checkpoint int // 1-based position in the checkpoint sequence
	Name       string
	Message    string
	Counts     Counts
}

func (e *AssertionError) Error() string {
	return e.Message
}

func (e *AssertionError) Unwrap() error {
	return ErrAssertion
}

// checkpoint is one ordered assertion over the dump.
type checkpoint struct {
	name     string
	message  string // failure message
	verified string // printed when the checkpoint passes
	pass     func(output string, c Counts) bool
}

var checkpoints = []checkpoint{
	{
		name:     "protocol-present",
		message:  "OSPF Protocol missing",
		verified: "Verified OSPF Protocol entry",
		pass: func(output string, _ Counts) bool {
			return strings.Contains(output, OSPFProtocol)
		},
	},
	{
		name:     "protocol-count",
		message:  "More than 2 occurrences of OSPF Protocol",
		verified: "Verified OSPF Protocol count",
		pass: func(_ string, c Counts) bool {
			return c.Protocol == WantProtocolEntries
		},
	},
	{
		name:     "all-routers-present",
		message:  "All Routers OSPF field entry missing",
		verified: "Verified All Routers OSPF field entry",
		pass: func(output string, _ Counts) bool {
			return strings.Contains(output, AllRoutersIP) && strings.Contains(output, AllRoutersMAC)
		},
	},
	{
		name:     "all-routers-count",
		message:  "More than 1 occurrence of All Routers OSPF field entry",
		verified: "Verified All Routers OSPF field entry count",
		pass: func(_ string, c Counts) bool {
			return c.AllRoutersIP == WantGroupEntries && c.AllRoutersMAC == WantGroupEntries
		},
	},
	{
		name:     "designated-routers-present",
		message:  "Designated Routers OSPF field entry missing",
		verified: "Verified Designated Routers OSPF field entry",
		pass: func(output string, _ Counts) bool {
			return strings.Contains(output, DesignatedRoutersIP) && strings.Contains(output, DesignatedRoutersMAC)
		},
	},
	{
		name:     "designated-routers-count",
		message:  "More than 1 occurrence of Designated Routers OSPF field entry",
		verified: "Verified Designated Routers OSPF field entry count",
		pass: func(_ string, c Counts) bool {
			return c.DesignatedRoutersIP == WantGroupEntries && c.DesignatedRoutersMAC == WantGroupEntries
		},
	},
}

// Checkpoints returns the checkpoint names in evaluation order.
func Checkpoints() []string {
	names := make([]string, len(checkpoints))
	for i, cp := range checkpoints {
		names[i] = cp.name
	}
	return names
}

// Verify scans output and evaluates the checkpoints in order, stopping at the
// first failure. report, if non-nil, receives a line for each checkpoint that
// passes.
func Verify(output string, report func(string)) (Counts, error) {
	c := Scan(output)
	for i, cp := range checkpoints {
		if !cp.pass(output, c) {
			return c, &AssertionError{
				Checkpoint: i + 1,
				Name:       cp.name,
				Message:    cp.message,
				Counts:     c,
			}
		}
		if report != nil {
			report(cp.verified)
		}
	}
	return c, nil
}

// String renders the counts for log lines.
func (c Counts) String() string {
	parts := make([]string, 0, 5)
	for _, e := range c.Entries() {
		parts = append(parts, fmt.Sprintf("%s=%d", e.Name, e.Count))
	}
	return strings.Join(parts, " ")
}
