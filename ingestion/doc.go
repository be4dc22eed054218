// Package ingestion turns a document corpus into a searchable collection.
//
// A Run reads every document from the source, splits each into overlapping
// token chunks, embeds the chunks in batches, and upserts the resulting
// records into the vector store. Record IDs are deterministic, so re-running
// ingestion over an unchanged corpus rewrites the same records rather than
// accumulating duplicates.
//
// Embedding batches are processed concurrently on a worker pool. The run is
// fail-fast: the first batch error cancels the remaining work and fails the
// run, leaving whatever was already upserted in place for the next attempt
// to overwrite.
package ingestion
