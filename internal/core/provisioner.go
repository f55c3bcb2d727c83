// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"fmt"

	"github.com/mike-mehl/nerves-hub-cli/internal/i18n"
	"github.com/mike-mehl/nerves-hub-cli/internal/logging"
	"github.com/mike-mehl/nerves-hub-cli/internal/model"
	"github.com/mike-mehl/nerves-hub-cli/internal/pki"
	"github.com/mike-mehl/nerves-hub-cli/internal/security"
)

// Settings keys the provisioner maintains. At most one credential exists at
// a time: either token is set, or the vault record plus email/org are.
const (
	SettingToken = "token"
	SettingEmail = "email"
	SettingOrg   = "org"
)

// Well-known file names inside the data directory.
const (
	VaultFileName     = "identity.vault"
	SettingsFileName  = "settings.db"
	ExportArchiveName = "nerves-hub-certs.tar.gz"
)

// Audit actions recorded in the local activity trail.
const (
	actionRegister      = "REGISTER_ACCOUNT"
	actionAuthToken     = "AUTHORIZE_TOKEN"
	actionAuthCert      = "AUTHORIZE_CERTIFICATE"
	actionDeauthorize   = "DEAUTHORIZE"
	actionExportArchive = "EXPORT_IDENTITY"
)

const maxPasswordAttempts = 3

// AuthMode selects how Authenticate talks to the hub.
type AuthMode string

const (
	// AuthModeToken logs in for a server-issued access token.
	AuthModeToken AuthMode = "token"
	// AuthModePeer validates credentials against a hub that authenticates
	// users by client certificate, then issues one.
	AuthModePeer AuthMode = "peer"
)

// AuthOutcome reports which credential Authenticate installed.
type AuthOutcome struct {
	Kind    model.CredentialKind
	Account *model.Account // set when a certificate identity was installed
}

// Config carries the explicit knobs the provisioner needs; there is no
// ambient process state.
type Config struct {
	// Description identifies this machine on signing requests and is the
	// default note on issued tokens. Usually the hostname.
	Description string
}

// Provisioner drives the identity lifecycle against its collaborators.
type Provisioner struct {
	Service  AccountService
	Settings SettingsStore
	Vault    Vault
	Prompt   Prompter
	Report   Reporter
	Config   Config

	state State
}

// NewProvisioner wires up a provisioner. A nil reporter silences progress
// messages.
func NewProvisioner(service AccountService, settings SettingsStore, vault Vault, prompt Prompter, report Reporter, cfg Config) *Provisioner {
	if cfg.Description == "" {
		cfg.Description = pki.DefaultDescription()
	}
	return &Provisioner{
		Service:  service,
		Settings: settings,
		Vault:    vault,
		Prompt:   prompt,
		Report:   report,
		Config:   cfg,
	}
}

func (p *Provisioner) reportf(format string, args ...any) {
	if p.Report != nil {
		p.Report.Reportf(format, args...)
	}
}

// Register creates the hub account and installs a certificate identity for
// it. A service rejection leaves the local state untouched; the account
// exists on the hub once the register call succeeds, even if the certificate
// flow afterwards fails and rolls back.
func (p *Provisioner) Register(ctx context.Context, username, email string, password security.Secret) (*model.Account, error) {
	p.transition(StateRegistering)
	account, err := p.Service.Register(ctx, username, email, password)
	if err != nil {
		p.transition(StateUnauthenticated)
		return nil, err
	}
	if account.Username == "" {
		account.Username = username
	}
	if account.Email == "" {
		account.Email = email
	}
	if err := p.Settings.LogAction(actionRegister, account.String()); err != nil {
		logging.Warnf("could not record registration in activity log: %v", err)
	}

	if err := p.certificateFlow(ctx, account, username, password); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate installs a credential for an existing account. Token mode
// asks for an access token; peer mode validates the password and goes
// straight to certificate issuance. A token-mode login the server answers
// with account data instead of a token also falls through to certificate
// issuance, which is how older hubs provision users.
func (p *Provisioner) Authenticate(ctx context.Context, identifier string, password security.Secret, mode AuthMode, note string) (*AuthOutcome, error) {
	switch mode {
	case AuthModeToken:
		if note == "" {
			note = p.Config.Description
		}
		result, err := p.Service.Login(ctx, identifier, password, note)
		if err != nil {
			return nil, err
		}
		switch {
		case !result.Token.IsZero():
			if err := p.storeToken(result.Token, identifier); err != nil {
				p.transition(StateUnauthenticated)
				return nil, err
			}
			p.transition(StateAuthenticatedToken)
			return &AuthOutcome{Kind: model.CredentialToken}, nil
		case result.Account != nil:
			account := result.Account
			if err := p.certificateFlow(ctx, account, identifier, password); err != nil {
				return nil, err
			}
			return &AuthOutcome{Kind: model.CredentialCertificate, Account: account}, nil
		default:
			return nil, ErrProtocol
		}
	case AuthModePeer:
		account, err := p.Service.PeerAuth(ctx, identifier, password)
		if err != nil {
			return nil, err
		}
		if err := p.certificateFlow(ctx, account, identifier, password); err != nil {
			return nil, err
		}
		return &AuthOutcome{Kind: model.CredentialCertificate, Account: account}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// storeToken replaces whatever credential exists with the token. Vault
// first: if the settings switch fails afterwards, the machine is left with
// no credential rather than two.
func (p *Provisioner) storeToken(token security.Secret, identifier string) error {
	if err := p.Vault.Erase(); err != nil {
		return fmt.Errorf("clear previous identity: %w", err)
	}
	set := map[string]string{SettingToken: string(token.Bytes())}
	if err := p.Settings.ReplaceSettings(set, []string{SettingEmail, SettingOrg}); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := p.Settings.LogAction(actionAuthToken, identifier); err != nil {
		logging.Warnf("could not record token authorization in activity log: %v", err)
	}
	return nil
}

// certificateFlow provisions a certificate identity for an authenticated
// account: local password, fresh key, CSR, server signing, seal, persist,
// settings switch. Any failure after key generation rolls the machine back
// to the unauthenticated state so no partial identity survives.
func (p *Provisioner) certificateFlow(ctx context.Context, account *model.Account, identifier string, accountPassword security.Secret) error {
	p.transition(StateAwaitingLocalPassword)
	localPassword, err := p.promptNewLocalPassword()
	if err != nil {
		p.transition(StateUnauthenticated)
		return err
	}
	defer localPassword.Zero()

	p.transition(StateSealing)
	key, err := pki.GenerateKey()
	if err != nil {
		p.transition(StateUnauthenticated)
		return fmt.Errorf("generate key: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if derr := p.Deauthorize(); derr != nil {
			logging.Warnf("rollback after failed provisioning: %v", derr)
		}
	}()

	csrDER, err := pki.CreateCSR(key, account.Username)
	if err != nil {
		return fmt.Errorf("create signing request: %w", err)
	}
	certPEM, err := p.Service.SignUserCSR(ctx, identifier, accountPassword, csrDER, p.Config.Description)
	if err != nil {
		return err
	}
	keyPEM, err := pki.EncodeKeyPEM(key)
	if err != nil {
		return fmt.Errorf("encode key: %w", err)
	}
	if err := pki.VerifyCertificate(certPEM, keyPEM); err != nil {
		return fmt.Errorf("issued certificate rejected: %w", err)
	}

	if err := p.Vault.Store(certPEM, keyPEM, localPassword); err != nil {
		return fmt.Errorf("seal identity: %w", err)
	}
	set := map[string]string{
		SettingEmail: account.Email,
		SettingOrg:   account.Username,
	}
	if err := p.Settings.ReplaceSettings(set, []string{SettingToken}); err != nil {
		return fmt.Errorf("store identity settings: %w", err)
	}
	if err := p.Settings.LogAction(actionAuthCert, account.String()); err != nil {
		logging.Warnf("could not record certificate authorization in activity log: %v", err)
	}

	committed = true
	p.transition(StateAuthenticatedCert)
	return nil
}

// promptNewLocalPassword collects and confirms the password protecting the
// vault. It never leaves this process.
func (p *Provisioner) promptNewLocalPassword() (security.Secret, error) {
	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		entry, err := p.Prompt.ReadPassword(i18n.T("vault.password_new"))
		if err != nil {
			return nil, err
		}
		if entry.IsZero() {
			p.reportf("%s", i18n.T("vault.password_empty"))
			continue
		}
		confirm, err := p.Prompt.ReadPassword(i18n.T("vault.password_confirm"))
		if err != nil {
			entry.Zero()
			return nil, err
		}
		if entry.Equal(confirm) {
			confirm.Zero()
			return entry, nil
		}
		entry.Zero()
		confirm.Zero()
		p.reportf("%s", i18n.T("vault.password_mismatch"))
	}
	return nil, ErrPasswordMismatch
}

// Deauthorize removes the stored credential from this machine: vault record
// and identity settings. It is idempotent and purely local; tokens and
// certificates are not revoked on the hub.
func (p *Provisioner) Deauthorize() error {
	p.transition(StateDeauthenticating)
	if err := p.Vault.Erase(); err != nil {
		return fmt.Errorf("erase identity: %w", err)
	}
	if err := p.Settings.ReplaceSettings(nil, []string{SettingToken, SettingEmail, SettingOrg}); err != nil {
		return fmt.Errorf("clear identity settings: %w", err)
	}
	if err := p.Settings.LogAction(actionDeauthorize, ""); err != nil {
		logging.Warnf("could not record deauthorization in activity log: %v", err)
	}
	p.transition(StateUnauthenticated)
	return nil
}

// WhoAmI resolves the stored credential and asks the hub who it belongs to.
// Read-only: it never modifies local state.
func (p *Provisioner) WhoAmI(ctx context.Context) (*model.Account, error) {
	cred, err := p.resolveCredential()
	if err != nil {
		return nil, err
	}
	return p.Service.Me(ctx, cred)
}

// resolveCredential loads whichever credential is stored. A token wins; a
// vault record needs the local password to unlock.
func (p *Provisioner) resolveCredential() (model.Credential, error) {
	token, err := p.Settings.GetSetting(SettingToken)
	if err != nil {
		return model.Credential{}, fmt.Errorf("read settings: %w", err)
	}
	if token != "" {
		return model.TokenCredential(security.FromString(token)), nil
	}

	exists, err := p.Vault.Exists()
	if err != nil {
		return model.Credential{}, fmt.Errorf("check vault: %w", err)
	}
	if !exists {
		return model.Credential{}, ErrNotAuthenticated
	}

	password, err := p.Prompt.ReadPassword(i18n.T("vault.password_open"))
	if err != nil {
		return model.Credential{}, err
	}
	defer password.Zero()

	certPEM, keyPEM, err := p.Vault.Retrieve(password)
	if err != nil {
		return model.Credential{}, err
	}
	return model.CertificateCredential(certPEM, keyPEM), nil
}

// Activity returns the local audit trail, newest first.
func (p *Provisioner) Activity() ([]model.AuditLogEntry, error) {
	return p.Settings.GetAllAuditLogEntries()
}
