// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import "github.com/mike-mehl/nerves-hub-cli/internal/logging"

// State names where the provisioner currently is in the identity lifecycle.
// Transitions are logged at debug level so a --verbose run shows the path a
// flow took, including rollbacks.
type State int

const (
	// StateUnauthenticated is the resting state with no stored credential.
	StateUnauthenticated State = iota
	// StateRegistering covers the account creation call.
	StateRegistering
	// StateAwaitingLocalPassword covers the local password entry and
	// confirmation before any key material exists.
	StateAwaitingLocalPassword
	// StateSealing covers key generation through sealing and persisting
	// the issued identity.
	StateSealing
	// StateAuthenticatedToken means an access token is stored.
	StateAuthenticatedToken
	// StateAuthenticatedCert means a sealed certificate identity is stored.
	StateAuthenticatedCert
	// StateDeauthenticating covers removal of the stored credential.
	StateDeauthenticating
)

// String returns the state name used in transition logs.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRegistering:
		return "registering"
	case StateAwaitingLocalPassword:
		return "awaiting-local-password"
	case StateSealing:
		return "sealing"
	case StateAuthenticatedToken:
		return "authenticated(token)"
	case StateAuthenticatedCert:
		return "authenticated(certificate)"
	case StateDeauthenticating:
		return "deauthenticating"
	default:
		return "unknown"
	}
}

// transition moves the provisioner to next and records the step.
func (p *Provisioner) transition(next State) {
	if p.state == next {
		return
	}
	logging.Debugf("provisioner: %s -> %s", p.state, next)
	p.state = next
}

// State reports the provisioner's current lifecycle state.
func (p *Provisioner) State() State {
	return p.state
}
