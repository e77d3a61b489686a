package search

import (
	"testing"

	"codeassist-be/internal/entity"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantText    string
		wantFilters map[string]string
	}{
		{
			name:        "plain query",
			raw:         "websocket read pump",
			wantText:    "websocket read pump",
			wantFilters: map[string]string{},
		},
		{
			name:     "path filter extracted",
			raw:      "path:internal/websocket read pump",
			wantText: "read pump",
			wantFilters: map[string]string{
				entity.MetaPath: "internal/websocket",
			},
		},
		{
			name:     "multiple filters",
			raw:      "lang:go type:function parse envelope",
			wantText: "parse envelope",
			wantFilters: map[string]string{
				entity.MetaLanguage: "go",
				entity.MetaType:     "function",
			},
		},
		{
			name:     "symbol filter only",
			raw:      "symbol:HandleMessage",
			wantText: "",
			wantFilters: map[string]string{
				entity.MetaSymbol: "HandleMessage",
			},
		},
		{
			name:        "empty filter value dropped",
			raw:         "lang: retry logic",
			wantText:    "retry logic",
			wantFilters: map[string]string{},
		},
		{
			name:     "prefix match is case insensitive",
			raw:      "Lang:Go something",
			wantText: "something",
			wantFilters: map[string]string{
				entity.MetaLanguage: "Go",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuery(tt.raw)
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if len(got.Filters) != len(tt.wantFilters) {
				t.Fatalf("Filters = %v, want %v", got.Filters, tt.wantFilters)
			}
			for k, v := range tt.wantFilters {
				if got.Filters[k] != v {
					t.Errorf("Filters[%q] = %q, want %q", k, got.Filters[k], v)
				}
			}
		})
	}
}
