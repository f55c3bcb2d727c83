// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mike-mehl/nerves-hub-cli/internal/i18n"
)

var activityCmd = &cobra.Command{
	Use:     "activity",
	Short:   "Show the local provisioning activity trail",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := provisioner.Activity()
		if err != nil {
			log.Fatalf("%s", i18n.T("activity.error", err))
		}
		if len(entries) == 0 {
			fmt.Println(i18n.T("activity.empty"))
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s\n",
				timestampStyle.Render(e.Timestamp),
				actionStyle.Render(e.Action),
				e.Details)
		}
	},
}
