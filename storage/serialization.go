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


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/partners/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalPartner serializes a Partner to bytes.
func MarshalPartner(partner *core.Partner) []byte {
	buf := make([]byte, core.PartnerMUS.Size(*partner))
	core.PartnerMUS.Marshal(*partner, buf)
	return buf
}

// UnmarshalPartner deserializes a Partner from bytes.
func UnmarshalPartner(data []byte) (*core.Partner, error) {
	partner, _, err := core.PartnerMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &partner, nil
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vec []float32) []byte {
	buf := make([]byte, core.VectorMUS.Size(vec))
	core.VectorMUS.Marshal(vec, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vec, _, err := core.VectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return vec, nil
}

// MarshalLexemes serializes a lexeme list to bytes.
func MarshalLexemes(lxs []core.Lexeme) []byte {
	buf := make([]byte, core.LexemesMUS.Size(lxs))
	core.LexemesMUS.Marshal(lxs, buf)
	return buf
}

// UnmarshalLexemes deserializes a lexeme list from bytes.
func UnmarshalLexemes(data []byte) ([]core.Lexeme, error) {
	lxs, _, err := core.LexemesMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return lxs, nil
}

// MarshalCount serializes a non-negative count to bytes.
func MarshalCount(n int) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(n)))
	varint.Uint64.Marshal(uint64(n), buf)
	return buf
}

// UnmarshalCount deserializes a count from bytes.
func UnmarshalCount(data []byte) (int, error) {
	n, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return int(n), nil
}
