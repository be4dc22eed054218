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
	"fmt"
	"strings"
)

// ValidateQuery validates a Query according to domain rules.
//
// Validation rules:
//   - Question must not be empty or whitespace-only
//
// NOT validated:
//   - SelectedText (empty is meaningful: it selects normal RAG mode)
func ValidateQuery(q *Query) error {
	if q == nil {
		return fmt.Errorf("%w: query is nil", ErrValidation)
	}
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	return nil
}

// ValidateChunking validates a (chunk size, overlap) pair.
//
// Validation rules:
//   - chunk size must be positive
//   - overlap must be non-negative and strictly smaller than chunk size,
//     otherwise the sliding window cannot advance
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfig, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrConfig, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap (%d) must be smaller than chunk size (%d)", ErrConfig, overlap, chunkSize)
	}
	return nil
}

// ValidateTopK validates a retrieval result limit.
func ValidateTopK(topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrConfig, topK)
	}
	return nil
}
