package dbutil

import (
	"github.com/jmoiron/sqlx"
)

// Finalize rewrites the "?" placeholders produced by gendry into postgres "$n" form.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}
