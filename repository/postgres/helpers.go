package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/taskcache/domain"
)

// scannable abstracts pgx.Row and pgx.Rows for the shared scan helper.
type scannable interface {
	Scan(dest ...interface{}) error
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// textArray keeps nil slices out of NOT NULL array columns.
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func notFoundWrap(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrTaskNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
