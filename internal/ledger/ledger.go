package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chronicle/internal/models"
)

// ErrInvalidKey reports a natural key that does not fit the kind's key column.
var ErrInvalidKey = errors.New("invalid natural key")

// NormalizeKey validates key against kind and returns the value bound to the key column.
func NormalizeKey(kind models.Kind, key string) (any, error) {
	key = strings.TrimSpace(key)
	switch kind.KeyType {
	case models.KeyNone:
		if key != "" {
			return nil, fmt.Errorf("%w: %s has no natural key", ErrInvalidKey, kind.Name)
		}
		return nil, nil
	case models.KeyInteger:
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s key %q is not an integer", ErrInvalidKey, kind.Name, key)
		}
		return n, nil
	default:
		if key == "" {
			return nil, fmt.Errorf("%w: %s key is required", ErrInvalidKey, kind.Name)
		}
		return key, nil
	}
}

// Append persists a new row and returns it with its assigned id.
func (s *Store) Append(ctx context.Context, kind models.Kind, row models.NewRow) (models.Row, error) {
	keyValue, err := NormalizeKey(kind, row.Key)
	if err != nil {
		return models.Row{}, err
	}
	if kind.PayloadColumn == "" && row.Payload != "" {
		return models.Row{}, fmt.Errorf("%s carries no payload", kind.Name)
	}
	for name := range row.Attrs {
		if !kind.HasAttr(name) {
			return models.Row{}, fmt.Errorf("%s has no attribute %q", kind.Name, name)
		}
	}

	cols := make([]string, 0, 3+len(kind.Attrs))
	args := make([]any, 0, cap(cols))
	if !kind.Singleton() {
		cols = append(cols, kind.KeyColumn)
		args = append(args, keyValue)
	}
	cols = append(cols, "date")
	args = append(args, row.Date)
	if kind.PayloadColumn != "" {
		cols = append(cols, kind.PayloadColumn)
		args = append(args, row.Payload)
	}
	for _, attr := range kind.Attrs {
		cols = append(cols, attr)
		args = append(args, nullableString(row.Attrs, attr))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		kind.Table, strings.Join(cols, ", "), placeholders(len(cols)))

	var id int64
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&id); err != nil {
		return models.Row{}, models.WrapIO("append "+kind.Name, err)
	}

	out := models.Row{
		ID:      id,
		Kind:    kind.Name,
		Date:    row.Date,
		Payload: row.Payload,
		Attrs:   copyAttrs(row.Attrs),
	}
	if keyValue != nil {
		out.Key = fmt.Sprint(keyValue)
	}
	return out, nil
}

// Latest returns the row with the greatest id for key, or nil when there is none.
// Singleton kinds take an empty key and return the newest row in the table.
func (s *Store) Latest(ctx context.Context, kind models.Kind, key string) (*models.Row, error) {
	where, args, err := keyFilter(kind, key)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, kind, where+" ORDER BY id DESC LIMIT 1", args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// History returns every row for key, newest first.
func (s *Store) History(ctx context.Context, kind models.Kind, key string) ([]models.Row, error) {
	where, args, err := keyFilter(kind, key)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, kind, where+" ORDER BY id DESC", args...)
}

// LatestN returns the n newest rows of kind. n <= 0 returns every row.
func (s *Store) LatestN(ctx context.Context, kind models.Kind, n int) ([]models.Row, error) {
	if n <= 0 {
		return s.All(ctx, kind)
	}
	return s.query(ctx, kind, " ORDER BY id DESC LIMIT ?", n)
}

// All returns every row of kind, newest first.
func (s *Store) All(ctx context.Context, kind models.Kind) ([]models.Row, error) {
	return s.query(ctx, kind, " ORDER BY id DESC")
}

// Get returns the row with id, or nil when absent.
func (s *Store) Get(ctx context.Context, kind models.Kind, id int64) (*models.Row, error) {
	rows, err := s.query(ctx, kind, " WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Counts returns the number of rows per kind name.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, kind := range models.Kinds() {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+kind.Table).Scan(&n); err != nil {
			return nil, models.WrapIO("count "+kind.Name, err)
		}
		out[kind.Name] = n
	}
	return out, nil
}

func keyFilter(kind models.Kind, key string) (string, []any, error) {
	keyValue, err := NormalizeKey(kind, key)
	if err != nil {
		return "", nil, err
	}
	if kind.Singleton() {
		return "", nil, nil
	}
	return fmt.Sprintf(" WHERE %s = ?", kind.KeyColumn), []any{keyValue}, nil
}

func (s *Store) query(ctx context.Context, kind models.Kind, tail string, args ...any) ([]models.Row, error) {
	cols := rowColumns(kind)
	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(cols, ", "), kind.Table, tail)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, models.WrapIO("query "+kind.Name, err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		row, err := scanRow(rows, kind)
		if err != nil {
			return nil, models.WrapIO("scan "+kind.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapIO("query "+kind.Name, err)
	}
	return out, nil
}

func scanRow(rows *sql.Rows, kind models.Kind) (models.Row, error) {
	var (
		row     = models.Row{Kind: kind.Name}
		intKey  sql.NullInt64
		textKey sql.NullString
		payload sql.NullString
		attrs   = make([]sql.NullString, len(kind.Attrs))
	)

	dest := []any{&row.ID}
	switch kind.KeyType {
	case models.KeyInteger:
		dest = append(dest, &intKey)
	case models.KeyText:
		dest = append(dest, &textKey)
	}
	dest = append(dest, &row.Date)
	if kind.PayloadColumn != "" {
		dest = append(dest, &payload)
	}
	for i := range attrs {
		dest = append(dest, &attrs[i])
	}

	if err := rows.Scan(dest...); err != nil {
		return models.Row{}, err
	}

	if intKey.Valid {
		row.Key = strconv.FormatInt(intKey.Int64, 10)
	}
	if textKey.Valid {
		row.Key = textKey.String
	}
	row.Payload = payload.String
	for i, attr := range kind.Attrs {
		if !attrs[i].Valid {
			continue
		}
		if row.Attrs == nil {
			row.Attrs = make(map[string]string, len(kind.Attrs))
		}
		row.Attrs[attr] = attrs[i].String
	}
	return row, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullableString(attrs map[string]string, name string) any {
	value, ok := attrs[name]
	if !ok {
		return nil
	}
	return value
}

func copyAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
