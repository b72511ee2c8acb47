package topology

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/fpverify/pkg/util"
)

// DefaultSSHPort is used when neither the node nor the defaults set a port.
const DefaultSSHPort = 22

// Binding holds the management endpoint for one node.
type Binding struct {
	MgmtIP   string `yaml:"mgmt_ip"`
	SSHPort  int    `yaml:"ssh_port,omitempty"` // 0 means defaults, then 22
	SSHUser  string `yaml:"ssh_user,omitempty"`
	SSHPass  string `yaml:"ssh_pass,omitempty"`
	Platform string `yaml:"platform,omitempty"`
}

// Bindings is the parsed bindings file.
//
//	defaults:
//	  ssh_user: admin
//	nodes:
//	  sw1:
//	    mgmt_ip: 10.0.0.11
//	    platform: openswitch
type Bindings struct {
	Defaults Binding             `yaml:"defaults,omitempty"`
	Nodes    map[string]*Binding `yaml:"nodes"`
}

// LoadBindings reads a YAML bindings file.
func LoadBindings(path string) (*Bindings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bindings %s: %w", path, err)
	}

	var b Bindings
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing bindings %s: %w", path, err)
	}
	return &b, nil
}

// resolve returns the binding for name with defaults applied, or nil.
func (b *Bindings) resolve(name string) *Binding {
	nb, ok := b.Nodes[name]
	if !ok || nb == nil {
		return nil
	}
	r := *nb
	if r.SSHPort == 0 {
		r.SSHPort = b.Defaults.SSHPort
	}
	if r.SSHPort == 0 {
		r.SSHPort = DefaultSSHPort
	}
	if r.SSHUser == "" {
		r.SSHUser = b.Defaults.SSHUser
	}
	if r.SSHPass == "" {
		r.SSHPass = b.Defaults.SSHPass
	}
	if r.Platform == "" {
		r.Platform = b.Defaults.Platform
	}
	return &r
}

// Bind attaches bindings to the topology's nodes. Every binding must name a
// declared node and carry a management address; nodes without a binding are
// left unbound.
func (t *Topology) Bind(b *Bindings) error {
	names := make([]string, 0, len(b.Nodes))
	for name := range b.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := t.Get(name)
		if node == nil {
			return fmt.Errorf("%w: binding for undeclared node %q", util.ErrInvalidConfig, name)
		}
		r := b.resolve(name)
		if r == nil || r.MgmtIP == "" {
			return fmt.Errorf("%w: binding for %q has no mgmt_ip", util.ErrInvalidConfig, name)
		}
		node.Binding = r
	}
	return nil
}

// Address returns host:port for SSH.
func (b *Binding) Address() string {
	port := b.SSHPort
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(b.MgmtIP, strconv.Itoa(port))
}
