package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// page normalizes pagination into a limit and an offset.
// Cursors are opaque to callers; internally they are row offsets.
func page(p PaginationParams) (limit, offset int, err error) {
	limit = p.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if p.Cursor == "" {
		return limit, 0, nil
	}
	offset, err = strconv.Atoi(strings.TrimPrefix(p.Cursor, "o"))
	if err != nil || offset < 0 || !strings.HasPrefix(p.Cursor, "o") {
		return 0, 0, ErrInvalidCursor
	}
	return limit, offset, nil
}

// paginate trims a result set fetched with limit+1 rows
func paginate[T any](rows []T, limit, offset int) *PaginatedResult[T] {
	if rows == nil {
		rows = []T{}
	}
	result := &PaginatedResult[T]{Data: rows}
	if len(rows) > limit {
		result.Data = rows[:limit]
		result.HasMore = true
		result.NextCursor = "o" + strconv.Itoa(offset+limit)
	}
	return result
}

// prepareBuild fills in the generated fields of a new build record
func prepareBuild(b *Build) error {
	if b.Kind != KindCompile && b.Kind != KindTest {
		return ErrInvalidRecord
	}
	if b.ID == "" {
		b.ID = generateID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return nil
}

// prepareVerification fills in the generated fields of a new verification record
func prepareVerification(v *Verification) error {
	if v.Address == "" || v.State == "" {
		return ErrInvalidRecord
	}
	v.Address = strings.ToLower(v.Address)
	if v.ID == "" {
		v.ID = generateID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	return nil
}

// whereClause accumulates optional filter conditions.
// placeholder renders the n-th (1-based) bind parameter for the dialect.
type whereClause struct {
	conds       []string
	args        []any
	placeholder func(n int) string
}

func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", w.placeholder(len(w.args)), 1))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder for the next bind parameter and records its value
func (w *whereClause) next(arg any) string {
	w.args = append(w.args, arg)
	return w.placeholder(len(w.args))
}

func buildWhere(filter BuildFilter, placeholder func(int) string) *whereClause {
	w := &whereClause{placeholder: placeholder}
	if filter.Kind != "" {
		w.add("kind = ?", filter.Kind)
	}
	if filter.ContractName != "" {
		w.add("contract_name = ?", filter.ContractName)
	}
	if filter.Success != nil {
		w.add("success = ?", *filter.Success)
	}
	return w
}

func verificationWhere(filter VerificationFilter, placeholder func(int) string) *whereClause {
	w := &whereClause{placeholder: placeholder}
	if filter.Address != "" {
		w.add("address = ?", strings.ToLower(filter.Address))
	}
	if filter.Network != "" {
		w.add("network = ?", filter.Network)
	}
	if filter.GUID != "" {
		w.add("guid = ?", filter.GUID)
	}
	return w
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
