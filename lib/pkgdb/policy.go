// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Bucket separates levels users choose from levels administrators
// impose.
type Bucket int

const (
	BucketSelf Bucket = iota
	BucketAdmin
)

// AnyUID is the wildcard uid of a policy record.
const AnyUID = -1

// Wildcard matches any application or privilege.
const Wildcard = "*"

// PolicyRecord is one stored level.
type PolicyRecord struct {
	UID       int
	AppID     string
	Privilege string
	Bucket    Bucket
	Level     string
}

// SetPolicy stores records in one transaction, replacing earlier
// levels for the same user, application, privilege, and bucket.
func (db *DB) SetPolicy(ctx context.Context, records []PolicyRecord) error {
	return db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		for _, record := range records {
			err := exec(conn, `
				INSERT OR REPLACE INTO policy (uid, app, privilege, bucket, level)
				VALUES (?, ?, ?, ?, ?)`,
				record.UID, record.AppID, record.Privilege, int(record.Bucket), record.Level)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Policy returns every record of bucket, ordered by uid, application,
// and privilege.
func (db *DB) Policy(ctx context.Context, bucket Bucket) ([]PolicyRecord, error) {
	var records []PolicyRecord
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT uid, app, privilege, level FROM policy WHERE bucket = ?
			ORDER BY uid, app, privilege`, &sqlitex.ExecOptions{
			Args: []any{int(bucket)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, PolicyRecord{
					UID:       stmt.ColumnInt(0),
					AppID:     stmt.ColumnText(1),
					Privilege: stmt.ColumnText(2),
					Bucket:    bucket,
					Level:     stmt.ColumnText(3),
				})
				return nil
			},
		})
	})
	return records, err
}

// Levels returns, per bucket, the level of the most specific record
// matching uid, appID, and privilege. An exact uid beats the wildcard,
// then an exact application, then an exact privilege. Buckets without
// a matching record are absent from the map.
func (db *DB) Levels(ctx context.Context, uid int, appID, privilege string) (map[Bucket]string, error) {
	levels := make(map[Bucket]string)
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT bucket, level FROM policy
			WHERE uid IN (?, -1) AND app IN (?, '*') AND privilege IN (?, '*')
			ORDER BY bucket, uid = -1, app = '*', privilege = '*'`, &sqlitex.ExecOptions{
			Args: []any{uid, appID, privilege},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				bucket := Bucket(stmt.ColumnInt(0))
				if _, ok := levels[bucket]; !ok {
					levels[bucket] = stmt.ColumnText(1)
				}
				return nil
			},
		})
	})
	return levels, err
}
