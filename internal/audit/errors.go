// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package audit

import "errors"

var (
	ErrMissingTimestamp = errors.New("audit: event timestamp is required")
	ErrMissingAction    = errors.New("audit: event action is required")
	ErrMissingStatus    = errors.New("audit: event status must be attempt, success, or failure")
)
