// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// Action names line up as a column in the activity listing.
	actionStyle = lipgloss.NewStyle().
			Bold(true).
			Width(22)
)

// cliReporter carries progress messages from the provisioning core to the
// terminal. Output goes to stderr so prompts and reports interleave
// correctly with redirected stdout.
type cliReporter struct{}

func (cliReporter) Reportf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
