// Copyright (c) 2026 Mike Mehl
// nerves-hub-cli - NervesHub user identity management
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ServiceError is a non-2xx answer from the hub. Validation rejections carry
// a field-to-messages map which is rendered verbatim, the way the server
// phrased it; anything else keeps an opaque reason.
type ServiceError struct {
	StatusCode int
	Reason     string
	Errors     map[string][]string
}

// Error renders validation messages as "field message" lines, sorted by
// field so output is stable.
func (e *ServiceError) Error() string {
	if len(e.Errors) > 0 {
		fields := make([]string, 0, len(e.Errors))
		for f := range e.Errors {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		var parts []string
		for _, f := range fields {
			for _, msg := range e.Errors[f] {
				parts = append(parts, fmt.Sprintf("%s %s", f, msg))
			}
		}
		return strings.Join(parts, "; ")
	}
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("unexpected server response (status %d)", e.StatusCode)
}

// newServiceError builds a ServiceError from a response body. The errors
// field may be a map of field messages or a plain string; both shapes occur.
func newServiceError(status int, body []byte) *ServiceError {
	se := &ServiceError{StatusCode: status}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		var fieldErrors map[string][]string
		if err := json.Unmarshal(envelope.Errors, &fieldErrors); err == nil {
			se.Errors = fieldErrors
			return se
		}
		var reason string
		if err := json.Unmarshal(envelope.Errors, &reason); err == nil {
			se.Reason = reason
			return se
		}
	}

	se.Reason = http.StatusText(status)
	return se
}
