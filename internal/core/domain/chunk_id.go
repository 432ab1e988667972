package domain

import (
	"fmt"
	"strings"
)

// ChunkID returns the deterministic identifier for a chunk.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s#%d", documentID, position)
}

// DocumentIDFromChunkID recovers the document ID from a chunk ID.
func DocumentIDFromChunkID(chunkID string) string {
	i := strings.LastIndex(chunkID, "#")
	if i < 0 {
		return chunkID
	}
	return chunkID[:i]
}
