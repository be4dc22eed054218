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


// Package ai provides abstractions for the AI services used by ragbook.
//
// This package defines interfaces for text embedding and answer generation.
// The ingestion pipeline and the query orchestrator depend on these
// abstractions rather than on concrete provider clients, so live providers
// can be swapped for deterministic fakes in tests.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: generates vector embeddings from text, with a mandatory
//     task hint distinguishing document-intent from query-intent input
//   - Generator: produces a free-text completion from a single prompt
//   - Provider: aggregates both services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.Provider
//
// Test utility constructors (mock.NewEmbedder, mock.NewGenerator) return
// CONCRETE types to enable test assertions and behavior injection via the
// mock's public fields and methods.
//
// # Rate Limiting and Retries
//
// Provider calls are subject to an external requests-per-minute ceiling.
// The Gate type is a shared rate-limiting gate that serializes or delays
// calls regardless of how many batches are in flight; RetryWithBackoff
// bounds retries on transient failures. Both are used by the openai
// implementation and are exported for any alternative provider.
package ai
