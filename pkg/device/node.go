package device

import (
	"context"

	"github.com/newtron-network/fpverify/pkg/topology"
	"github.com/newtron-network/fpverify/pkg/util"
)

// DialNode connects to a bound topology node over SSH. When the binding has
// no password it is read from the terminal.
func DialNode(ctx context.Context, node *topology.Node) (*SSHDevice, error) {
	if node == nil {
		return nil, util.NewPreconditionError("connect", "(nil)", "node must exist in topology", "")
	}
	b := node.Binding
	if b == nil {
		return nil, util.NewPreconditionError("connect", node.ID, "node must have a binding", "add it to the bindings file")
	}

	pass := b.SSHPass
	if pass == "" {
		var err error
		if pass, err = PromptPassword(node.ID, b.SSHUser); err != nil {
			return nil, err
		}
	}

	dev := NewSSHDevice(node.ID, SSHConfig{
		Address:  b.Address(),
		User:     b.SSHUser,
		Password: pass,
	})
	if err := dev.Connect(ctx); err != nil {
		return nil, err
	}
	return dev, nil
}
