// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import "errors"

var (
	// ErrNotAuthenticated means no credential is stored on this machine.
	ErrNotAuthenticated = errors.New("not authenticated; run 'nerves-hub user auth' first")

	// ErrProtocol means the server answered success with a payload shape
	// this client does not recognize.
	ErrProtocol = errors.New("unrecognized server response")

	// ErrPasswordMismatch means the local password entry and confirmation
	// never agreed within the allowed attempts.
	ErrPasswordMismatch = errors.New("passwords did not match")
)
