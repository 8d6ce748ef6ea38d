package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goliatone/go-entitylist/entitylist"
	"github.com/goliatone/go-entitylist/query"
)

// writeRecords prints one JSON object per record.
func writeRecords(w io.Writer, records []query.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// writeSummary prints a one line description of s.
func writeSummary(w io.Writer, s entitylist.State) error {
	total := "?"
	if s.TotalCount != nil {
		total = fmt.Sprint(*s.TotalCount)
	}
	source := "store"
	if s.FromCache {
		source = "cache"
	}
	_, err := fmt.Fprintf(w, "# records=%d total=%s pages=%d more=%t source=%s\n",
		len(s.Records), total, s.Page, s.HasMore, source)
	return err
}
