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


// Package lexical derives the weighted token representation of partners and
// ranks documents against prefix OR queries.
//
// Each searchable field belongs to a weight class (A name and industry,
// B description, C location, website and additional data, D contact fields).
// Analyze turns a partner into lexemes carrying term positions and class.
// PrepareQuery turns free text into prefix terms. Scorer combines class
// weights, inverse document frequency, cover density and document length
// into a relevance score in [0, 1).
//
// Stores keep the lexemes in an inverted index and feed candidate documents
// to a Scorer; the package itself holds no state.
package lexical
