// Package chunker splits documents into overlapping fixed-size token
// windows for embedding and retrieval. Chunking is a pure function of the
// document and the configuration: no side effects, and re-running it over
// the same input produces the same chunks with the same identifiers.
package chunker
