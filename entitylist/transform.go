package entitylist

import (
	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/query"
)

// TransformFunc derives the published shape of a record. It must keep the id.
type TransformFunc func(query.Record) query.Record

// Pipeline narrows and reshapes records before they are cached or merged.
type Pipeline struct {
	// Fields, when set, keeps only the id and these fields. Fields missing
	// from a record are omitted, not defaulted.
	Fields    []string
	Transform TransformFunc
}

// Apply runs field selection and then the transform on rec.
func (p Pipeline) Apply(rec query.Record) (query.Record, error) {
	id := rec.ID()

	out := rec.Clone()
	if len(p.Fields) > 0 {
		out = make(query.Record, len(p.Fields)+1)
		if v, ok := rec[query.IDField]; ok {
			out[query.IDField] = v
		}
		for _, f := range p.Fields {
			if v, ok := rec[f]; ok {
				out[f] = v
			}
		}
	}

	if p.Transform == nil {
		return out, nil
	}
	out = p.Transform(out)
	if out == nil || out.ID() != id {
		return nil, errors.Wrapf(ErrTransformDroppedID, "record %q", id)
	}
	return out, nil
}

// ApplyAll runs Apply over records, failing on the first error.
func (p Pipeline) ApplyAll(records []query.Record) ([]query.Record, error) {
	out := make([]query.Record, 0, len(records))
	for _, rec := range records {
		r, err := p.Apply(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// dedup appends the records of page whose id is not in seen, marking them seen.
func dedup(dst []query.Record, seen map[string]struct{}, page []query.Record) ([]query.Record, []query.Record) {
	added := make([]query.Record, 0, len(page))
	for _, rec := range page {
		id := rec.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		added = append(added, rec)
	}
	return append(dst, added...), added
}
