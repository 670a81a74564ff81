// Package ingestion turns a source document into embedded chunks.
//
// The Pipeline runs these stages in order:
//   - Loader: parses an EPUB or text file into raw sections
//   - PropagateMetadata: fills missing chapters from the preceding section
//   - ContentFilter: drops front and back matter and strips noise
//   - Chunker: splits sections into overlapping chunks that keep their metadata
//   - Indexer: embeds chunks in batches on a worker pool and stores them
//
// Running a pipeline twice appends duplicate chunks unless WithClearFirst is set.
// A Watcher re-runs the pipeline whenever the source file changes.
package ingestion
