package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func buildPlaceholders(start, count int) string {
	if count <= 0 {
		return ""
	}
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s safe to embed in a LIKE pattern using the default
// backslash escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends cond after replacing each "?" with the next placeholder.
func (w *whereBuilder) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) next() string {
	return fmt.Sprintf("$%d", len(w.args)+1)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// messageScope builds the WHERE clause shared by listing, counting and
// new-since queries so all three see the same rows.
func messageScope(q MessageQuery) *whereBuilder {
	w := &whereBuilder{}
	w.add("(sender_id = ? OR recipient_id = ?)", q.UserID, q.UserID)
	w.add("status <> 'deleted'")
	if q.Status != "" {
		w.add("status = ?", string(q.Status))
	}
	if q.Kind != "" {
		w.add("kind = ?", string(q.Kind))
	}
	if q.Priority != "" {
		w.add("priority = ?", string(q.Priority))
	}
	if q.Category != "" {
		w.add("category = ?", q.Category)
	}
	if q.SenderID.Valid {
		w.add("sender_id = ?", q.SenderID.UUID)
	}
	if q.ThreadID.Valid {
		w.add("thread_id = ?", q.ThreadID.UUID)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		w.add("(subject ILIKE ? OR content ILIKE ?)", pattern, pattern)
	}
	return w
}
