// Copyright 2025 Poiesic Systems
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

import "errors"

// Error categories. Package-specific errors wrap one of these so callers
// can classify failures with errors.Is.
var (
	// ErrValidation indicates caller input was rejected.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown partner ID.
	ErrNotFound = errors.New("partner not found")

	// ErrDependencyUnavailable indicates the store or embedder could not be reached.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrDegradedIndex indicates a search index is missing and a fallback applies.
	ErrDegradedIndex = errors.New("search index unavailable")

	// ErrInternal indicates an unexpected store or query fault.
	ErrInternal = errors.New("internal search failure")

	// ErrConfiguration indicates mismatched components, such as embedding dimensions.
	ErrConfiguration = errors.New("configuration error")
)

// Domain validation errors
var (
	// ErrEmptyName indicates the partner Name field is blank.
	ErrEmptyName = errors.New("partner name cannot be empty")

	// ErrInvalidText indicates a field is not valid UTF-8.
	ErrInvalidText = errors.New("text must be valid UTF-8")

	// ErrEmptyAttributeKey indicates an additional data entry without a key.
	ErrEmptyAttributeKey = errors.New("additional data key cannot be empty")

	// ErrDuplicateAttributeKey indicates an additional data key appears twice.
	ErrDuplicateAttributeKey = errors.New("duplicate additional data key")

	// ErrNonFiniteNumber indicates a NaN or infinite additional data number.
	ErrNonFiniteNumber = errors.New("additional data numbers must be finite")

	// ErrInvalidTopN indicates a non-positive result limit.
	ErrInvalidTopN = errors.New("top_n must be greater than 0")

	// ErrUnknownStrategy indicates an unsupported search strategy name.
	ErrUnknownStrategy = errors.New("unknown search strategy")

	// ErrDimensionMismatch indicates an embedding of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
