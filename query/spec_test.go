package query

import (
	"strings"
	"testing"
)

func TestNewSpec(t *testing.T) {
	tests := []struct {
		name      string
		coll      string
		pageSize  int
		sort      *Sort
		filters   []Filter
		wantError string
	}{
		{
			name: "defaults page size",
			coll: "contacts",
		},
		{
			name:      "missing collection",
			wantError: "Collection",
		},
		{
			name:      "page size too large",
			coll:      "contacts",
			pageSize:  MaxPageSize + 1,
			wantError: "PageSize",
		},
		{
			name:      "unknown operator",
			coll:      "contacts",
			filters:   []Filter{{Field: "x", Op: "like", Value: 1}},
			wantError: "unknown operator",
		},
		{
			name:      "in requires a list",
			coll:      "contacts",
			filters:   []Filter{Where("status", OpIn, "open")},
			wantError: "must be a list",
		},
		{
			name:    "in with a list",
			coll:    "contacts",
			filters: []Filter{Where("status", OpIn, []string{"open", "closed"})},
		},
		{
			name:      "bad sort direction",
			coll:      "contacts",
			sort:      &Sort{Field: "nom", Direction: "up"},
			wantError: "Direction",
		},
		{
			name:      "missing filter field",
			coll:      "contacts",
			filters:   []Filter{{Op: OpEq, Value: 1}},
			wantError: "Field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := NewSpec(tt.coll, tt.pageSize, tt.sort, tt.filters...)

			if tt.wantError != "" {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.wantError) {
					t.Errorf("expected error to mention %q, got %q", tt.wantError, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error but got: %v", err)
			}
			if tt.pageSize == 0 && spec.PageSize != DefaultPageSize {
				t.Errorf("expected default page size %d, got %d", DefaultPageSize, spec.PageSize)
			}
		})
	}
}

func TestSpec_CopiesAreIndependent(t *testing.T) {
	base := Spec{Collection: "contacts", PageSize: 10, Sort: By("nom", Asc), Filters: []Filter{Eq("a", 1)}}

	cp := base.Clone()
	cp.Filters[0] = Eq("b", 2)
	cp.Sort.Direction = Desc

	if base.Filters[0].Field != "a" {
		t.Error("mutating the clone filters changed the original")
	}
	if base.Sort.Direction != Asc {
		t.Error("mutating the clone sort changed the original")
	}
}

func TestRecord_ID(t *testing.T) {
	if got := (Record{"id": "c1"}).ID(); got != "c1" {
		t.Errorf("expected c1, got %q", got)
	}
	if got := (Record{"id": 42}).ID(); got != "42" {
		t.Errorf("expected 42, got %q", got)
	}
	if got := (Record{"name": "x"}).ID(); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}
