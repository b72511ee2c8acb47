// Package testutil provides fixtures shared by unit, integration and e2e tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/newtron-network/fpverify/pkg/device"
)

// OSPFGroupDump is an FP dump of the OSPF group as a correctly programmed
// switch reports it: two IpProtocol 0x59 entries and one DstIp/DstMac entry
// for each of the all-routers and designated-routers groups.
const OSPFGroupDump = `Group 7 (ospf-group) entries: 3
Entry 4096 prio 10
    IpProtocol     Data: 0x59            Mask: 0xff
    DstMac         Data: 1:0:5e:0:0:5    Mask: ff:ff:ff:ff:ff:ff
    Action: CopyToCpu
Entry 4097 prio 10
    IpProtocol     Data: 0x59            Mask: 0xff
    DstIp          Data: 224.0.0.5       Mask: 255.255.255.255
    Action: CopyToCpu
Entry 4098 prio 10
    DstIp          Data: 224.0.0.6       Mask: 255.255.255.255
    DstMac         Data: 1:0:5e:0:0:6    Mask: ff:ff:ff:ff:ff:ff
    Action: CopyToCpu
`

// ExtraProtocolLine returns OSPFGroupDump with a third IpProtocol 0x59 entry.
func ExtraProtocolLine() string {
	return OSPFGroupDump + "Entry 4099 prio 10\n    IpProtocol     Data: 0x59            Mask: 0xff\n"
}

// WithoutLine returns dump with every line containing substr removed.
func WithoutLine(dump, substr string) string {
	var kept []string
	for _, line := range strings.Split(dump, "\n") {
		if !strings.Contains(line, substr) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// FakeCall records one command sent to a FakeDevice.
type FakeCall struct {
	Cmd   string
	Shell device.Shell
}

// FakeDevice is a device.Executor that answers from a table of canned outputs.
type FakeDevice struct {
	Outputs map[string]string // command -> output
	Errors  map[string]error  // command -> error returned alongside output
	Closed  bool

	mu    sync.Mutex
	calls []FakeCall
}

// NewFakeDevice returns a device that answers the OSPF FP dump command with dump.
func NewFakeDevice(dump string) *FakeDevice {
	return &FakeDevice{
		Outputs: map[string]string{"ovs-appctl plugin/debug fp ospf-group": dump},
		Errors:  map[string]error{},
	}
}

// Exec returns the canned output for cmd, or an empty string.
func (f *FakeDevice) Exec(_ context.Context, cmd string, shell device.Shell) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Cmd: cmd, Shell: shell})
	return f.Outputs[cmd], f.Errors[cmd]
}

// Close marks the device closed.
func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Calls returns the commands executed so far.
func (f *FakeDevice) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
