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


// Package storage provides the storage abstraction layer for partners.
//
// This package defines repository interfaces that decouple storage implementation
// from search and catalog logic. Two backends implement them: storage/badger, an
// embedded key-value store that keeps its own vector table and inverted index,
// and storage/postgres, which relies on pgvector and tsvector columns.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - PartnerRepository: CRUD over partners, one transaction per write
//   - VectorSearcher: cosine nearest-neighbor search
//   - KeywordSearcher: substring candidate lookup
//   - LexicalSearcher: weighted prefix-term ranking
//   - IndexMaintainer: idempotent index construction
//   - Store: all of the above
//
// # Derived artifacts
//
// A partner's embedding, lexemes and digest are written in the same
// transaction as its fields, together with every index entry derived from
// them. Deleting a partner removes all of them together. CheckDerived guards
// against writes whose artifacts were computed from other field values.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
