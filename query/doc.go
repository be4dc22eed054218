// Package query answers questions against an ingested corpus.
//
// The Orchestrator is the online entry point. Each request is validated,
// dispatched to one of two modes, turned into a single prompt, and sent to
// the generation provider exactly once:
//
//   - normal_rag: the question is embedded and the vector store is searched
//     for the top-k most similar chunks, which become the prompt context and
//     the answer's citations.
//   - selected_text: the caller supplied an excerpt, which is used as the
//     context verbatim. Retrieval is skipped and the answer carries no
//     citations.
//
// There is no reasoning loop and no retry on low-quality output; one request
// produces one generation call.
package query
