package entitylist

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/query"
)

func TestPipeline_Apply(t *testing.T) {
	rec := query.Record{"id": "1", "name": "ada", "email": "ada@x.io", "age": 36}

	tests := []struct {
		name     string
		pipeline Pipeline
		want     query.Record
	}{
		{
			name:     "identity",
			pipeline: Pipeline{},
			want:     query.Record{"id": "1", "name": "ada", "email": "ada@x.io", "age": 36},
		},
		{
			name:     "selected fields keep id",
			pipeline: Pipeline{Fields: []string{"name"}},
			want:     query.Record{"id": "1", "name": "ada"},
		},
		{
			name:     "missing selected fields are omitted",
			pipeline: Pipeline{Fields: []string{"name", "phone"}},
			want:     query.Record{"id": "1", "name": "ada"},
		},
		{
			name: "transform after selection",
			pipeline: Pipeline{
				Fields: []string{"name"},
				Transform: func(r query.Record) query.Record {
					r["name"] = strings.ToUpper(r["name"].(string))
					return r
				},
			},
			want: query.Record{"id": "1", "name": "ADA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pipeline.Apply(rec)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Apply()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}

	if rec["name"] != "ada" || len(rec) != 4 {
		t.Errorf("input record was modified: %v", rec)
	}
}

func TestPipeline_TransformMustKeepID(t *testing.T) {
	tests := []struct {
		name      string
		transform TransformFunc
	}{
		{"nil record", func(query.Record) query.Record { return nil }},
		{"dropped id", func(r query.Record) query.Record { return query.Record{"name": r["name"]} }},
		{"changed id", func(r query.Record) query.Record { r["id"] = "2"; return r }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pipeline{Transform: tt.transform}.Apply(query.Record{"id": "1", "name": "ada"})
			if !errors.Is(err, ErrTransformDroppedID) {
				t.Errorf("err = %v, want ErrTransformDroppedID", err)
			}
		})
	}
}

func TestDedup(t *testing.T) {
	seen := make(map[string]struct{})
	merged, added := dedup(nil, seen, []query.Record{{"id": "1"}, {"id": "2"}, {"id": "1"}})
	if !equalIDs(merged, "1", "2") || !equalIDs(added, "1", "2") {
		t.Fatalf("merged = %v added = %v", ids(merged), ids(added))
	}

	merged, added = dedup(merged, seen, []query.Record{{"id": "2"}, {"id": "3"}})
	if !equalIDs(merged, "1", "2", "3") {
		t.Errorf("merged = %v, want [1 2 3]", ids(merged))
	}
	if !equalIDs(added, "3") {
		t.Errorf("added = %v, want [3]", ids(added))
	}
}
