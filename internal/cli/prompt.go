// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// terminalPrompter reads interactive input from stdin. Prompts are written
// to stderr so they show up even when stdout is redirected.
type terminalPrompter struct {
	in *bufio.Reader
}

func newTerminalPrompter() *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(os.Stdin)}
}

// ReadLine prompts for and reads a single line, with the trailing newline
// stripped. A final unterminated line before EOF is still returned.
func (p *terminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword prompts for a password. On a terminal, input echo is
// disabled; otherwise (piped input, tests) it falls back to a line read.
func (p *terminalPrompter) ReadPassword(prompt string) (security.Secret, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		secret := security.FromBytes(raw)
		for i := range raw {
			raw[i] = 0
		}
		return secret, nil
	}
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	return security.FromString(strings.TrimRight(line, "\r\n")), nil
}

// Confirm asks a yes/no question and reports whether the user answered yes.
// Anything other than "y" or "yes" counts as no.
func (p *terminalPrompter) Confirm(prompt string) (bool, error) {
	answer, err := p.ReadLine(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
