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


// Package search recommends partners for a free-text query.
//
// The Searcher type dispatches each query to one of three independent
// strategies:
//   - semantic: cosine similarity between the query embedding and each
//     partner's embedding
//   - keyword: a weighted OR match of whitespace separated keywords, where
//     each keyword scores the weight of the first field containing it
//   - fulltext: weighted lexical ranking over the partner projection, with
//     an explicit substring fallback while the lexical index is missing
//
// Scores of different strategies use different scales and are never
// combined. Every strategy resolves its ranked IDs with one bulk lookup.
package search
