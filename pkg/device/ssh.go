package device

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/newtron-network/fpverify/pkg/util"
)

// DefaultDialTimeout bounds the TCP connect and SSH handshake when the
// caller's context has no deadline.
const DefaultDialTimeout = 30 * time.Second

// SSHConfig describes how to reach a node's management plane.
type SSHConfig struct {
	Address  string // host:port
	User     string
	Password string
}

// SSHDevice runs commands on a node over SSH. A new session is opened per
// command; the underlying connection is shared.
type SSHDevice struct {
	name string
	cfg  SSHConfig

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSHDevice creates an unconnected device.
func NewSSHDevice(name string, cfg SSHConfig) *SSHDevice {
	return &SSHDevice{name: name, cfg: cfg}
}

// Name returns the topology node name.
func (d *SSHDevice) Name() string {
	return d.name
}

// Connect dials the node and completes the SSH handshake.
func (d *SSHDevice) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	config := &ssh.ClientConfig{
		User: d.cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(d.cfg.Password),
		},
		// Lab devices only; host keys are not verified.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Address)
	if err != nil {
		return fmt.Errorf("SSH dial %s: %w", d.cfg.Address, err)
	}

	// The handshake does not take a context; bound it with the deadline.
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)
	c, chans, reqs, err := ssh.NewClientConn(conn, d.cfg.Address, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SSH handshake %s: %w", d.cfg.Address, err)
	}
	_ = conn.SetDeadline(time.Time{})

	d.client = ssh.NewClient(c, chans, reqs)
	util.WithDevice(d.name).Debugf("connected to %s as %s", d.cfg.Address, d.cfg.User)
	return nil
}

// Exec runs cmd in shell and returns the combined stdout/stderr. A non-zero
// exit status is returned as an error alongside the output.
func (d *SSHDevice) Exec(ctx context.Context, cmd string, shell Shell) (string, error) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()
	if client == nil {
		return "", fmt.Errorf("%s: %w", d.name, util.ErrNotConnected)
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	line := shell.Wrap(cmd)
	util.WithDevice(d.name).Debugf("exec: %s", line)

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(line)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return string(r.out), fmt.Errorf("SSH exec '%s': %w", line, r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		session.Close()
		<-done
		return "", ctx.Err()
	}
}

// Close closes the SSH connection.
func (d *SSHDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
