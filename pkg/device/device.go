// Package device executes shell commands on topology nodes.
package device

import (
	"context"
	"strings"
)

// Shell selects the shell a command is run in on the node.
type Shell string

const (
	// ShellBash sends the command verbatim to the node's login shell.
	ShellBash Shell = "bash"
	// ShellVtysh runs the command through the routing CLI.
	ShellVtysh Shell = "vtysh"
)

// Wrap returns the command line that runs cmd in the shell.
func (s Shell) Wrap(cmd string) string {
	switch s {
	case ShellVtysh:
		return "vtysh -c " + shellQuote(cmd)
	default:
		return cmd
	}
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Executor runs a command on a node and returns its combined output.
type Executor interface {
	Exec(ctx context.Context, cmd string, shell Shell) (string, error)
}

// ExecFunc adapts a function to the Executor interface.
type ExecFunc func(ctx context.Context, cmd string, shell Shell) (string, error)

// Exec calls f.
func (f ExecFunc) Exec(ctx context.Context, cmd string, shell Shell) (string, error) {
	return f(ctx, cmd, shell)
}
