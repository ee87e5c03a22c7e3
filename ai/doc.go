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


// Package ai provides the embedding abstractions used by the partner engine.
//
// Partners are embedded from their textual projection and queries are
// embedded the same way, so both sides of a semantic search go through a
// single Embedder. Two implementation sub-packages exist:
//
//   - ai/openai: embeddings from an OpenAI-compatible HTTP API (Ollama, vLLM)
//   - ai/hugot: in-process ONNX inference of a local sentence-embedding model
//   - ai/mock: test doubles that need no model at all
//
// Public constructors (openai.NewProvider, hugot.NewEmbedder) return
// interface types. Test constructors (mock.NewMockEmbedder) return concrete
// types so tests can inject behavior and count calls.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithBackend(ai.BackendHugot), ai.WithModelPath("/models/mxbai"))
//	provider, err := NewProvider(config) // see partners.NewProvider
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Name: Acme")
package ai
