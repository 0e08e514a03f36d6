// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite connection pool behind the
// package database.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection: WAL journaling, synchronous=FULL,
// a five second busy timeout, and enforced foreign keys. [Pool.Write]
// runs a function inside an IMMEDIATE transaction so a multi-statement
// update either lands completely or not at all.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path: "/var/lib/secmgr/secmgr.db",
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
