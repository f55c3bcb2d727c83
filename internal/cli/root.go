// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

// root.go sets up the command-line interface for nerves-hub using the Cobra
// library. It defines the root command, wires the shared services (config,
// settings store, hub client, provisioner), and resolves build metadata.

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mike-mehl/nerves-hub-cli/buildvars"
	"github.com/mike-mehl/nerves-hub-cli/internal/api"
	"github.com/mike-mehl/nerves-hub-cli/internal/config"
	"github.com/mike-mehl/nerves-hub-cli/internal/core"
	"github.com/mike-mehl/nerves-hub-cli/internal/db"
	"github.com/mike-mehl/nerves-hub-cli/internal/i18n"
	"github.com/mike-mehl/nerves-hub-cli/internal/logging"
	"github.com/mike-mehl/nerves-hub-cli/internal/pki"
	"github.com/mike-mehl/nerves-hub-cli/internal/vault"
)

var (
	cfgFile         string
	verbose         bool
	showVersionFlag bool

	appConfig   config.Config
	store       db.Store
	provisioner *core.Provisioner
	prompter    *terminalPrompter
)

// defaultDataDir is where the settings store and the sealed identity live
// unless data_dir overrides it.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nerves-hub"
	}
	return filepath.Join(home, ".nerves-hub")
}

// setupDefaultServices loads the configuration and builds the shared
// services. Data commands run it as their PreRunE; tests may pre-seed the
// package state instead.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	optionalConfigPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	defaults := map[string]any{
		"uri":      api.DefaultBaseURL,
		"ca_certs": "",
		"data_dir": defaultDataDir(),
		"language": "en",
		"timeout":  60,
	}

	wroteDefault := false
	appConfig, err = config.LoadConfig[config.Config](cmd, defaults, optionalConfigPath)
	if err != nil {
		// A missing config file means this is the first run (or the file was
		// deleted). Persist the defaults so they are discoverable.
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			if writeErr := config.WriteConfigFile(&appConfig, false); writeErr != nil {
				log.Warnf("could not write default config file: %v", writeErr)
			} else {
				wroteDefault = true
			}
		} else {
			return errors.New(i18n.T("config.error_load", err))
		}
	}

	// Empty values in a hand-edited config fall back to the defaults.
	if appConfig.URI == "" {
		appConfig.URI = defaults["uri"].(string)
	}
	if appConfig.DataDir == "" {
		appConfig.DataDir = defaults["data_dir"].(string)
	}
	if appConfig.Language == "" {
		appConfig.Language = defaults["language"].(string)
	}
	if appConfig.Timeout <= 0 {
		appConfig.Timeout = defaults["timeout"].(int)
	}

	i18n.Init(appConfig.Language)
	if wroteDefault {
		log.Info(i18n.T("config.wrote_default"))
	}

	if err := os.MkdirAll(appConfig.DataDir, 0o700); err != nil {
		return fmt.Errorf("could not create data directory %s: %w", appConfig.DataDir, err)
	}

	if store == nil {
		s, err := db.NewStore(filepath.Join(appConfig.DataDir, core.SettingsFileName))
		if err != nil {
			return errors.New(i18n.T("config.error_open_store", err))
		}
		store = s
	}

	client, err := api.New(appConfig.URI, appConfig.CACerts, time.Duration(appConfig.Timeout)*time.Second)
	if err != nil {
		return fmt.Errorf("could not configure the hub client: %w", err)
	}

	prompter = newTerminalPrompter()
	identityVault := vault.NewFileVault(filepath.Join(appConfig.DataDir, core.VaultFileName))
	provisioner = core.NewProvisioner(client, store, identityVault, prompter, cliReporter{}, core.Config{
		Description: pki.DefaultDescription(),
	})
	return nil
}

// Execute runs the CLI entrypoint. The cmd/nerves-hub main package calls
// this and handles process exit.
func Execute() error {
	defer func() {
		if store != nil {
			if err := store.Close(); err != nil {
				log.Errorf("closing settings store: %v", err)
			}
			store = nil
		}
	}()

	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	// Only proceed if the user has explicitly set the --config flag.
	if cmd.Flags().Changed("config") {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, fmt.Errorf("could not read --config flag: %w", err)
		}
		if path == "" {
			return nil, nil
		}
		// Make sure the user-provided file exists to avoid unwanted behavior.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		return &path, nil
	}
	return nil, nil
}

// NewRootCmd creates and configures a new root cobra command. This function
// builds the main application command as well as fresh instances for
// isolated testing.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nerves-hub",
		Short: "nerves-hub manages your NervesHub user identity from the terminal.",
		Long: `nerves-hub provisions and manages the cryptographic identity this
machine uses to talk to a NervesHub server. Register an account or
authenticate an existing one, and the tool installs either an access
token or a signed client certificate kept in an encrypted local vault.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showVersionFlag {
				fmt.Println(compositeVersion())
				os.Exit(0)
			}
			if verbose {
				logging.SetDebug(true)
				db.SetDebug(true)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (debug logs, DB timings)")
	cmd.PersistentFlags().BoolVarP(&showVersionFlag, "version", "V", false, "Print version and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().String("uri", "", "Base URL of the hub's user API")
	cmd.PersistentFlags().String("language", "en", `Output language ("en", "de")`)

	// Subcommand flags. NewRootCmd may run multiple times in tests on the
	// same package-level subcommands; pflag panics on duplicates, so check
	// before defining.
	if authCmd.Flags().Lookup("mode") == nil {
		authCmd.Flags().StringVarP(&authMode, "mode", "m", "token", `Credential to request: "token" or "peer" (certificate)`)
	}
	if authCmd.Flags().Lookup("note") == nil {
		authCmd.Flags().StringVar(&authNote, "note", "", "Note attached to an issued token (defaults to the hostname)")
	}
	if exportCmd.Flags().Lookup("path") == nil {
		exportCmd.Flags().StringVarP(&exportPath, "path", "p", ".", "Directory the certificate archive is written to")
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			resolvedVersion, resolvedCommit, resolvedDate := resolveBuildVersion(nil)
			fmt.Printf("version: %s\n", resolvedVersion)
			fmt.Printf("commit: %s\n", resolvedCommit)
			if resolvedDate != "" {
				fmt.Printf("built: %s\n", resolvedDate)
			}
		},
	}

	userCmd.AddCommand(
		whoamiCmd,
		registerCmd,
		authCmd,
		deauthCmd,
		exportCmd,
	)
	cmd.AddCommand(
		userCmd,
		activityCmd,
		versionCmd,
	)

	return cmd
}

// compositeVersion renders "version (commit) built: date" from whatever
// build metadata is available.
func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	composite := v
	if c != "" {
		composite = composite + " (" + c + ")"
	}
	if d != "" {
		composite = composite + " built: " + d
	}
	return composite
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime. Separated out to make unit testing straightforward.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault("dev")
	resolvedCommit := buildvars.Commit
	resolvedDate := buildvars.Date

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// Some build paths leave Main.Version empty; fall back to our module
		// showing up among the dependencies.
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/mike-mehl/nerves-hub-cli" && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	// Last resort: with no version discovered but a commit injected at link
	// time, show the commit to aid support.
	if resolvedVersion == "dev" && buildvars.Commit != "" {
		resolvedVersion = buildvars.Commit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
