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


package badger

// NewMemoryStore creates an in-memory store for testing. Closing the store
// closes its backend.
func NewMemoryStore(opts ...Option) (*Store, error) {
	return openOwned("", true, opts)
}

// Open opens the badger database at path. Closing the store closes the
// database.
func Open(path string, opts ...Option) (*Store, error) {
	return openOwned(path, false, opts)
}

func openOwned(path string, inMemory bool, opts []Option) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store.ownsBackend = true
	return store, nil
}
