// Package ingestion defines the values that carry file content from disk into
// the indexer.
package ingestion

// Chunk is the full text of one file, ready to be merged into the index.
// Location is the chunk's starting offset within the file; only whole-file
// chunks (Location 0) are accepted by the indexer.
type Chunk struct {
	Text     string
	Location int64
	FileID   int32
	Path     string
}
