package repository

import (
	"database/sql"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

// expectOneRow maps an update that touched nothing to sql.ErrNoRows.
func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
