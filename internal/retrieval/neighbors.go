package retrieval

import (
	"fmt"
	"strconv"
	"strings"
)

// chunkMarker separates the document id from the chunk sequence number.
// The 4-digit zero-padded suffix is a wire-level contract shared with the
// chunker and anything that persists chunk ids.
const chunkMarker = "_chunk"

// NeighborIDs returns the chunk ids within radius of chunkID inside the same
// document, in ascending order and including chunkID itself. Ids that fall
// off either end of the document are still returned; existence is the
// caller's concern via lookup miss. Malformed ids pass through unchanged
// since they may come from untrusted metadata.
func NeighborIDs(chunkID string, radius int) []string {
	if radius <= 0 {
		return []string{chunkID}
	}
	base, tail, ok := strings.Cut(chunkID, chunkMarker)
	if !ok {
		return []string{chunkID}
	}
	idx, err := strconv.Atoi(tail)
	if err != nil {
		return []string{chunkID}
	}

	ids := make([]string, 0, 2*radius+1)
	for j := idx - radius; j <= idx+radius; j++ {
		ids = append(ids, fmt.Sprintf("%s%s%04d", base, chunkMarker, j))
	}
	return ids
}

// DocIDFromChunkID derives the parent document id from a chunk id by taking
// everything before the chunk marker. An id without the marker is returned
// whole.
func DocIDFromChunkID(chunkID string) string {
	base, _, _ := strings.Cut(chunkID, chunkMarker)
	return base
}

// SequenceFromChunkID extracts the numeric chunk sequence number, or 0 when
// the id does not carry one.
func SequenceFromChunkID(chunkID string) int {
	_, tail, ok := strings.Cut(chunkID, chunkMarker)
	if !ok {
		return 0
	}
	idx, err := strconv.Atoi(tail)
	if err != nil {
		return 0
	}
	return idx
}
