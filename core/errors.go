// Copyright 2025 Calen Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"context"
	"errors"
)

// Error taxonomy shared across the module. Failures are wrapped with one of
// these sentinels so callers can classify them with errors.Is without
// depending on provider-specific error types.
var (
	// ErrValidation indicates a malformed or empty request. User-facing, never retried.
	ErrValidation = errors.New("validation error")

	// ErrProvider indicates an embedding or generation provider failure
	// (auth, quota, malformed response) that survived the bounded retry policy.
	ErrProvider = errors.New("provider error")

	// ErrSchema indicates a vector dimension or collection mismatch.
	// Fatal: requires re-ingestion and is never auto-repaired.
	ErrSchema = errors.New("schema error")

	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("timeout error")

	// ErrConfig indicates invalid chunking or retrieval configuration.
	// Raised at startup or at the beginning of an ingestion run, never per-request.
	ErrConfig = errors.New("config error")
)

// IsTimeout reports whether err is a deadline failure, either already
// classified as ErrTimeout or a raw context deadline from an external call.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
