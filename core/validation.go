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

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// ValidatePartner validates a Partner according to domain rules.
//
// Validation rules:
//   - Name must not be blank
//   - All text fields must be valid UTF-8
//   - Additional data keys must be non-empty and unique at every level
//
// NOT validated (derived on write):
//   - Embedding, SearchableText, Digest
//   - ID (assigned by the store)
func ValidatePartner(p *Partner) error {
	if p == nil {
		return fmt.Errorf("%w: partner is nil", ErrValidation)
	}

	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyName)
	}

	for _, f := range ProjectedFields {
		if v, ok := p.FieldText(f); ok && !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s: %w", ErrValidation, f, ErrInvalidText)
		}
	}

	if err := validateAttributes(p.AdditionalData); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

func validateAttributes(attrs Attributes) error {
	seen := make(map[string]struct{}, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" {
			return ErrEmptyAttributeKey
		}
		if !utf8.ValidString(attr.Key) {
			return fmt.Errorf("key %q: %w", attr.Key, ErrInvalidText)
		}
		if _, dup := seen[attr.Key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAttributeKey, attr.Key)
		}
		seen[attr.Key] = struct{}{}
		if err := validateValue(attr.Value); err != nil {
			return fmt.Errorf("key %q: %w", attr.Key, err)
		}
	}
	return nil
}

func validateValue(v Value) error {
	switch v.Kind() {
	case KindString:
		if !utf8.ValidString(v.Str()) {
			return ErrInvalidText
		}
	case KindNumber:
		if math.IsNaN(v.Number()) || math.IsInf(v.Number(), 0) {
			return ErrNonFiniteNumber
		}
	case KindObject:
		return validateAttributes(v.Object())
	case KindList:
		for _, item := range v.List() {
			if err := validateValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateQuery validates the common search parameters.
func ValidateQuery(query string, topN int) error {
	if topN <= 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidTopN)
	}
	if !utf8.ValidString(query) {
		return fmt.Errorf("%w: query: %w", ErrValidation, ErrInvalidText)
	}
	return nil
}

// ValidateEmbedding checks that vec has the expected dimensionality.
// A mismatch is a configuration error, not a caller error.
func ValidateEmbedding(vec []float32, dims int) error {
	if len(vec) != dims {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrConfiguration, ErrDimensionMismatch, len(vec), dims)
	}
	return nil
}
