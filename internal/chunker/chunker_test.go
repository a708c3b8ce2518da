package chunker

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/restosync/pos-agent/internal/model"
)

func records(prefix string, n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{"id": fmt.Sprintf("%s-%d", prefix, i)}
	}
	return out
}

func TestSplitSmallResultUnchanged(t *testing.T) {
	in := model.ExtractionResult{
		"orderheaders":  records("oh", 60),
		"orderpayments": records("op", 40),
	}

	chunks := Split(in, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for total <= chunk_size, got %d", len(chunks))
	}
	if chunks[0].RecordCount != 100 {
		t.Errorf("expected record count 100, got %d", chunks[0].RecordCount)
	}
	if !reflect.DeepEqual(chunks[0].Data, in) {
		t.Errorf("small result must pass through unchanged")
	}
}

func TestSplitEmptyResult(t *testing.T) {
	chunks := Split(model.ExtractionResult{}, 100)
	if len(chunks) != 1 {
		t.Fatalf("expected a single empty chunk, got %d", len(chunks))
	}
	if chunks[0].RecordCount != 0 {
		t.Errorf("expected record count 0, got %d", chunks[0].RecordCount)
	}
}

func TestSplitSingleCollection(t *testing.T) {
	in := model.ExtractionResult{"orderheaders": records("oh", 150)}

	chunks := Split(in, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for 150 records at size 100, got %d", len(chunks))
	}
	if chunks[0].RecordCount != 100 || chunks[1].RecordCount != 50 {
		t.Fatalf("expected 100+50 split, got %d+%d",
			chunks[0].RecordCount, chunks[1].RecordCount)
	}

	// order preserved across the split
	var got []model.Record
	for _, c := range chunks {
		got = append(got, c.Data["orderheaders"]...)
	}
	if !reflect.DeepEqual(got, in["orderheaders"]) {
		t.Errorf("concatenated slices do not reconstruct the input collection")
	}
}

func TestSplitMultipleCollections(t *testing.T) {
	in := model.ExtractionResult{
		"orderheaders":      records("oh", 230),
		"orderpayments":     records("op", 120),
		"accountinvoiceerp": records("inv", 0),
	}

	chunks := Split(in, 100)

	// reconstruct each collection from emission order
	rebuilt := model.ExtractionResult{}
	for _, c := range chunks {
		nonEmpty := 0
		for name, recs := range c.Data {
			if len(recs) == 0 {
				continue
			}
			nonEmpty++
			rebuilt[name] = append(rebuilt[name], recs...)
		}
		if nonEmpty != 1 {
			t.Errorf("chunk carries %d non-empty collections, want exactly 1", nonEmpty)
		}
		if c.RecordCount > 100 {
			t.Errorf("chunk exceeds chunk_size: %d", c.RecordCount)
		}
	}

	for _, name := range []string{"orderheaders", "orderpayments"} {
		if !reflect.DeepEqual(rebuilt[name], in[name]) {
			t.Errorf("collection %s lost, duplicated, or reordered", name)
		}
	}
	if len(rebuilt["accountinvoiceerp"]) != 0 {
		t.Errorf("empty collection grew records")
	}

	total := 0
	for _, c := range chunks {
		total += c.RecordCount
	}
	if total != 350 {
		t.Errorf("record counts sum to %d, want 350", total)
	}
}

func TestSplitChunkShapeKeepsAllCollections(t *testing.T) {
	in := model.ExtractionResult{
		"orderheaders":  records("oh", 150),
		"orderpayments": records("op", 10),
	}

	for _, c := range Split(in, 100) {
		for _, name := range []string{"orderheaders", "orderpayments"} {
			if _, ok := c.Data[name]; !ok {
				t.Errorf("chunk missing collection key %s", name)
			}
		}
	}
}
