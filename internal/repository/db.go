// Package repository holds the SQL queries for usage counters, premium
// entitlements and conversion records. Queries are written with '?'
// placeholders and rebound to '$n' when running against Postgres.
package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the application's statements against a DBTX.
type Queries struct {
	db       DBTX
	postgres bool
}

// New returns Queries for the given driver ("sqlite" or "postgres").
func New(db DBTX, driver string) *Queries {
	return &Queries{db: db, postgres: driver == "postgres"}
}

// rebind converts '?' placeholders to '$1, $2, ...' for Postgres.
func (q *Queries) rebind(query string) string {
	if !q.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
