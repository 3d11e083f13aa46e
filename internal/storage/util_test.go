package storage

import (
	"errors"
	"testing"
)

func TestPage(t *testing.T) {
	tests := []struct {
		name       string
		params     PaginationParams
		wantLimit  int
		wantOffset int
		wantErr    error
	}{
		{"defaults", PaginationParams{}, defaultPageSize, 0, nil},
		{"explicit limit", PaginationParams{Limit: 5}, 5, 0, nil},
		{"limit capped", PaginationParams{Limit: 1000}, maxPageSize, 0, nil},
		{"cursor", PaginationParams{Limit: 5, Cursor: "o10"}, 5, 10, nil},
		{"cursor without prefix", PaginationParams{Cursor: "10"}, 0, 0, ErrInvalidCursor},
		{"negative cursor", PaginationParams{Cursor: "o-1"}, 0, 0, ErrInvalidCursor},
		{"garbage cursor", PaginationParams{Cursor: "oabc"}, 0, 0, ErrInvalidCursor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset, err := page(tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("page(%+v) error = %v, want %v", tt.params, err, tt.wantErr)
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("page(%+v) = (%d, %d), want (%d, %d)", tt.params, limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	got := paginate([]int{1, 2, 3}, 2, 4)
	if !got.HasMore || got.NextCursor != "o6" || len(got.Data) != 2 {
		t.Errorf("paginate() = %+v, want 2 items and cursor o6", got)
	}

	last := paginate([]int{1}, 2, 0)
	if last.HasMore || last.NextCursor != "" {
		t.Errorf("paginate() = %+v, want final page", last)
	}

	empty := paginate[int](nil, 2, 0)
	if empty.Data == nil {
		t.Error("paginate(nil).Data = nil, want empty slice")
	}
}

func TestWhereClause(t *testing.T) {
	success := true
	w := buildWhere(BuildFilter{Kind: KindTest, Success: &success}, postgresPlaceholder)
	if got, want := w.String(), " WHERE kind = $1 AND success = $2"; got != want {
		t.Errorf("buildWhere() = %q, want %q", got, want)
	}
	if got := w.next(10); got != "$3" {
		t.Errorf("next() = %q, want $3", got)
	}
	if len(w.args) != 3 {
		t.Errorf("args = %v, want 3 values", w.args)
	}

	empty := verificationWhere(VerificationFilter{}, sqlitePlaceholder)
	if empty.String() != "" {
		t.Errorf("verificationWhere() = %q, want empty", empty.String())
	}

	addr := verificationWhere(VerificationFilter{Address: "0xABC"}, sqlitePlaceholder)
	if addr.args[0] != "0xabc" {
		t.Errorf("address arg = %v, want lower-cased", addr.args[0])
	}

	byGUID := verificationWhere(VerificationFilter{Network: "testnet", GUID: "g1"}, postgresPlaceholder)
	if got := byGUID.String(); got != " WHERE network = $1 AND guid = $2" {
		t.Errorf("verificationWhere() = %q", got)
	}
}
