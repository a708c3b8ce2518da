// Package chunker bounds the size of a single delivery so a large
// extraction cannot time out or overload the ingest endpoint.
package chunker

import (
	"sort"

	"github.com/restosync/pos-agent/internal/model"
)

// Chunk is one size-bounded delivery unit.
type Chunk struct {
	Data        model.ExtractionResult
	RecordCount int
}

// Split divides an extraction result into chunks of at most chunkSize
// records. A result that fits in one chunk is returned unchanged.
// Otherwise each collection is sliced independently, preserving record
// order, and every chunk carries exactly one non-empty collection.
// Collections are processed in name order so the emission sequence is
// deterministic; the ingest side is commutative per collection, so
// cross-collection interleaving carries no meaning.
func Split(result model.ExtractionResult, chunkSize int) []Chunk {
	total := result.TotalRecords()
	if chunkSize <= 0 || total <= chunkSize {
		return []Chunk{{Data: result, RecordCount: total}}
	}

	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.Strings(names)

	var chunks []Chunk
	for _, name := range names {
		records := result[name]
		for i := 0; i < len(records); i += chunkSize {
			end := i + chunkSize
			if end > len(records) {
				end = len(records)
			}
			slice := records[i:end]

			data := make(model.ExtractionResult, len(result))
			for _, other := range names {
				data[other] = []model.Record{}
			}
			data[name] = slice

			chunks = append(chunks, Chunk{Data: data, RecordCount: len(slice)})
		}
	}

	return chunks
}
