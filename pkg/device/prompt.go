package device

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptPassword reads a password for user@node from the controlling
// terminal without echo. It fails when stdin is not a terminal.
func PromptPassword(node, user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password for %s@%s and stdin is not a terminal", user, node)
	}
	fmt.Fprintf(os.Stderr, "%s@%s password: ", user, node)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pass), nil
}
