// Package batch holds helpers shared by long-running bulk operations:
// indexing chunks during ingestion and re-embedding stored chunks.
//
// It provides retry with exponential backoff, progress reporting,
// batched embedding, and vector normalization so stored vectors can be
// compared with a plain dot product.
package batch
