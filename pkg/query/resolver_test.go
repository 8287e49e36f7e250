package query

import "testing"

type row struct {
	ID   int64
	Name string
}

func TestKeyset(t *testing.T) {
	resolve := Keyset(func(r row) int64 { return r.ID })

	tests := []struct {
		name  string
		last  Page[row]
		pages []Page[row]
		want  *int64
	}{
		{
			name: "no pages yet",
			last: nil,
			want: nil,
		},
		{
			name: "empty last page",
			last: Page[row]{},
			pages: []Page[row]{
				{{ID: 1}},
				{},
			},
			want: nil,
		},
		{
			name: "cursor is last item key",
			last: Page[row]{{ID: 4}, {ID: 7}},
			pages: []Page[row]{
				{{ID: 1}, {ID: 4}},
				{{ID: 4}, {ID: 7}},
			},
			want: ptr(int64(7)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.last, tt.pages)
			assertCursor(t, got, tt.want)
		})
	}
}

func TestKeysetWhileFull(t *testing.T) {
	resolve := KeysetWhileFull(2, func(r row) int64 { return r.ID })

	tests := []struct {
		name string
		last Page[row]
		want *int64
	}{
		{name: "no pages yet", last: nil, want: nil},
		{name: "full page continues", last: Page[row]{{ID: 1}, {ID: 2}}, want: ptr(int64(2))},
		{name: "short page ends", last: Page[row]{{ID: 3}}, want: nil},
		{name: "empty page ends", last: Page[row]{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.last, []Page[row]{tt.last})
			assertCursor(t, got, tt.want)
		})
	}
}

func TestOffset(t *testing.T) {
	resolve := Offset[string](3)

	tests := []struct {
		name  string
		last  Page[string]
		pages []Page[string]
		want  *int
	}{
		{name: "no pages yet", last: nil, want: nil},
		{
			name:  "full page offsets past all items",
			last:  Page[string]{"d", "e", "f"},
			pages: []Page[string]{{"a", "b", "c"}, {"d", "e", "f"}},
			want:  ptr(6),
		},
		{
			name:  "short page ends",
			last:  Page[string]{"g"},
			pages: []Page[string]{{"a", "b", "c"}, {"g"}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.last, tt.pages)
			assertCursor(t, got, tt.want)
		})
	}
}

func ptr[V any](v V) *V { return &v }

func assertCursor[C comparable](t *testing.T, got, want *C) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("Expected nil cursor, got %v", *got)
	case want != nil && got == nil:
		t.Errorf("Expected cursor %v, got nil", *want)
	case want != nil && got != nil && *got != *want:
		t.Errorf("Expected cursor %v, got %v", *want, *got)
	}
}
