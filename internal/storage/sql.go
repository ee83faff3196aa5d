package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"voicecapture/internal/models"
)

// createdAtLayout is fixed width so text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// promotedColumns are copied out of the document for filtering.
var promotedColumns = func() []string {
	cols := make([]string, 0, len(models.FilterParams))
	for _, p := range models.FilterParams {
		cols = append(cols, p.Field)
	}
	return cols
}()

// SQLStore keeps each record as a JSON document in the feedback table.
type SQLStore struct {
	db         *sql.DB
	collection string
}

// NewSQLStore wraps a migrated database.
func NewSQLStore(db *sql.DB, collection string) *SQLStore {
	if collection == "" {
		collection = "feedback"
	}
	return &SQLStore{db: db, collection: collection}
}

func (s *SQLStore) Collection() string { return s.collection }

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *SQLStore) Insert(ctx context.Context, rec models.Record) (string, error) {
	doc := rec.Clone()
	delete(doc, models.IDKey)
	created := createdAt(doc)
	doc[models.CreatedAtKey] = created

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	cols := append([]string{"document"}, promotedColumns...)
	cols = append(cols, "created_at")
	args := make([]any, 0, len(cols))
	args = append(args, string(body))
	for _, c := range promotedColumns {
		args = append(args, columnValue(doc[c]))
	}
	args = append(args, created.Format(createdAtLayout))

	query := fmt.Sprintf("INSERT INTO feedback (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return "", fmt.Errorf("insert feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read insert id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLStore) List(ctx context.Context, filter models.ListFilter) ([]models.Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.FeedbackID != "" {
		where = append(where, "INSTR(CAST(id AS CHAR), ?) > 0")
		args = append(args, filter.FeedbackID)
	}
	for _, p := range models.FilterParams {
		v, ok := filter.Fields[p.Field]
		if !ok {
			continue
		}
		if v == models.FilterEmpty {
			where = append(where, fmt.Sprintf("(%s IS NULL OR %s = '')", p.Field, p.Field))
			continue
		}
		where = append(where, p.Field+" = ?")
		args = append(args, v)
	}
	query := "SELECT id, document FROM feedback"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		var (
			id  int64
			doc string
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		rec, err := decodeDocument(id, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, id string) (models.Record, error) {
	n, err := parseSQLID(id)
	if err != nil {
		return nil, err
	}
	var doc string
	err = s.db.QueryRowContext(ctx, `SELECT document FROM feedback WHERE id = ?`, n).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return decodeDocument(n, doc)
}

func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := parseSQLID(id)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, n)
	if err != nil {
		return false, fmt.Errorf("delete feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete feedback: %w", err)
	}
	return affected > 0, nil
}

func parseSQLID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return n, nil
}

func decodeDocument(id int64, doc string) (models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("decode feedback %d: %w", id, err)
	}
	if rec == nil {
		rec = models.Record{}
	}
	if s, ok := rec[models.CreatedAtKey].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			rec[models.CreatedAtKey] = t
		}
	}
	rec[models.IDKey] = strconv.FormatInt(id, 10)
	return rec, nil
}

func createdAt(rec models.Record) time.Time {
	switch v := rec[models.CreatedAtKey].(type) {
	case time.Time:
		return v.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func columnValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
