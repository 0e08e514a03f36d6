// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"sort"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func exec(conn *sqlite.Conn, query string, args ...any) error {
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
}

// queryInt returns the first column of the first row, or ErrNotFound.
func queryInt(conn *sqlite.Conn, query string, args ...any) (int, error) {
	var value int
	found := false
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if !found {
				value = stmt.ColumnInt(0)
				found = true
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	return value, nil
}

// queryText returns the first column of the first row, or ErrNotFound.
func queryText(conn *sqlite.Conn, query string, args ...any) (string, error) {
	var value string
	found := false
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if !found {
				value = stmt.ColumnText(0)
				found = true
			}
			return nil
		},
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

func queryTexts(conn *sqlite.Conn, query string, args ...any) ([]string, error) {
	var values []string
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			values = append(values, stmt.ColumnText(0))
			return nil
		},
	})
	return values, err
}

func sortStrings(values []string) {
	sort.Strings(values)
}
