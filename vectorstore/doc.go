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


// Package vectorstore defines the storage abstraction for embedding records.
//
// A store is an opaque nearest-neighbor service: ragbook never implements an
// indexing algorithm of its own, it only requires collection-scoped upsert,
// top-k similarity search, and collection lifecycle management.
//
// # Implementation Packages
//
//   - vectorstore/qdrant: REST client for an external Qdrant service
//   - vectorstore/badger: embedded BadgerDB store with a brute-force cosine
//     scan, for local development and hermetic tests
//
// Both implementations key records by the deterministic chunk ID, so
// re-upserting a record replaces it and concurrent upserts commute.
package vectorstore
