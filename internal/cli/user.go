// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mike-mehl/nerves-hub-cli/internal/core"
	"github.com/mike-mehl/nerves-hub-cli/internal/i18n"
	"github.com/mike-mehl/nerves-hub-cli/internal/model"
)

var (
	authMode   string
	authNote   string
	exportPath string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the user identity on this machine",
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Verify the stored credential against the server",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		account, err := provisioner.WhoAmI(cmd.Context())
		if err != nil {
			log.Fatalf("%s", i18n.T("whoami.error", err))
		}
		fmt.Println(successStyle.Render(i18n.T("whoami.result", account.String())))
	},
}

var registerCmd = &cobra.Command{
	Use:     "register",
	Short:   "Register a new account and install a certificate identity",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		username, err := prompter.ReadLine(i18n.T("prompt.username"))
		if err != nil {
			log.Fatalf("%s", i18n.T("register.error", err))
		}
		email, err := prompter.ReadLine(i18n.T("prompt.email"))
		if err != nil {
			log.Fatalf("%s", i18n.T("register.error", err))
		}
		password, err := prompter.ReadPassword(i18n.T("prompt.account_password"))
		if err != nil {
			log.Fatalf("%s", i18n.T("register.error", err))
		}
		defer password.Zero()

		fmt.Println(i18n.T("register.registering", appConfig.URI))
		account, err := provisioner.Register(cmd.Context(), username, email, password)
		if err != nil {
			log.Fatalf("%s", i18n.T("register.error", err))
		}
		fmt.Println(successStyle.Render(i18n.T("register.success", account.Username)))
	},
}

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Authenticate an existing account",
	Long:    "Authenticate an existing account. By default a server access token is requested; --mode peer requests a signed client certificate instead.",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		identifier, err := prompter.ReadLine(i18n.T("prompt.identifier"))
		if err != nil {
			log.Fatalf("%s", i18n.T("auth.error", err))
		}
		password, err := prompter.ReadPassword(i18n.T("prompt.account_password"))
		if err != nil {
			log.Fatalf("%s", i18n.T("auth.error", err))
		}
		defer password.Zero()

		fmt.Println(i18n.T("auth.authenticating", appConfig.URI))
		outcome, err := provisioner.Authenticate(cmd.Context(), identifier, password, core.AuthMode(authMode), authNote)
		if err != nil {
			log.Fatalf("%s", i18n.T("auth.error", err))
		}
		if outcome.Kind == model.CredentialToken {
			fmt.Println(successStyle.Render(i18n.T("auth.success_token")))
		} else {
			fmt.Println(successStyle.Render(i18n.T("auth.success_cert")))
		}
	},
}

var deauthCmd = &cobra.Command{
	Use:     "deauth",
	Short:   "Remove the stored identity from this machine",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		ok, err := prompter.Confirm(i18n.T("deauth.confirm"))
		if err != nil {
			log.Fatalf("%s", i18n.T("deauth.error", err))
		}
		if !ok {
			fmt.Println(i18n.T("deauth.aborted"))
			return
		}
		if err := provisioner.Deauthorize(); err != nil {
			log.Fatalf("%s", i18n.T("deauth.error", err))
		}
		fmt.Println(successStyle.Render(i18n.T("deauth.success")))
	},
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export the certificate identity as a tar.gz archive",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		archivePath, err := provisioner.Export(exportPath)
		if err != nil {
			log.Fatalf("%s", i18n.T("export.error", err))
		}
		fmt.Println(successStyle.Render(i18n.T("export.success", archivePath)))
	},
}
