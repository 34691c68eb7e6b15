package retrieval

import "strings"

// StitchPreview concatenates the center chunk with its in-document neighbors
// to form a readable preview. Neighbor records whose doc_id differs from the
// center's are skipped, which keeps a preview from bleeding across document
// boundaries when the numeric id window wraps into another document's chunks.
//
// Earlier (closer-to-match) neighbors get budget priority: accumulation stops
// once maxChars runes are used, truncating only the last appended chunk to
// exactly fill the remaining room. With noTruncate the joined text is
// returned unbounded. When no neighbor text is found at all, the center's own
// text is the fallback.
func StitchPreview(center map[string]any, lookup map[string]map[string]any, neighbors, maxChars int, noTruncate bool) string {
	chunkID := metaString(center, "id")
	if chunkID == "" {
		return truncateRunes(flattenText(metaString(center, "text")), maxChars)
	}

	docID := metaString(center, "doc_id")
	if docID == "" {
		docID = DocIDFromChunkID(chunkID)
	}

	var parts []string
	total := 0

	for _, nid := range NeighborIDs(chunkID, neighbors) {
		rec := lookup[nid]
		if rec == nil {
			continue
		}
		recDoc := metaString(rec, "doc_id")
		if recDoc == "" {
			recDoc = DocIDFromChunkID(nid)
		}
		if recDoc != docID {
			continue
		}
		txt := flattenText(metaString(rec, "text"))
		if txt == "" {
			continue
		}
		if noTruncate {
			parts = append(parts, txt)
			continue
		}
		room := maxChars - total
		if room <= 0 {
			break
		}
		if n := len([]rune(txt)); n <= room {
			parts = append(parts, txt)
			total += n
		} else {
			parts = append(parts, truncateRunes(txt, room))
			total += room
			break
		}
	}

	if len(parts) == 0 {
		return truncateRunes(flattenText(metaString(center, "text")), maxChars)
	}
	joined := strings.Join(parts, " ")
	if noTruncate {
		return joined
	}
	return truncateRunes(joined, maxChars)
}

// flattenText collapses newlines to spaces and trims, so stitched previews
// read as a single passage.
func flattenText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
