// Package reembed recomputes the vectors of every stored chunk, e.g. after
// switching to a different embedding model.
//
// Chunks are walked in ID order in fixed-size batches, embedded with retry
// and exponential backoff, normalized, and written back in place. Chunk text
// and metadata are left untouched.
package reembed
