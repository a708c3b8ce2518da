package model

// Record is one extracted row, column name -> value.
type Record map[string]any

// ExtractionResult groups extracted rows by collection name
// (e.g. "orderheaders", "orderpayments", "accountinvoiceerp").
type ExtractionResult map[string][]Record

// TotalRecords sums the record counts across all collections.
func (r ExtractionResult) TotalRecords() int {
	n := 0
	for _, records := range r {
		n += len(records)
	}
	return n
}
