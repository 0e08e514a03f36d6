// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Share is an active private path share. Count is how many times it
// was applied without being dropped.
type Share struct {
	OwnerAppID  string
	TargetAppID string
	Path        string
	PathLabel   string
	Count       int
}

const appRowByName = "(SELECT app_id FROM app WHERE name = ?)"

// ApplySharing records one more application of a share and returns
// the new count.
func (db *DB) ApplySharing(ctx context.Context, ownerAppID, targetAppID, path, pathLabel string) (int, error) {
	var count int
	err := db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := exec(conn, `
			INSERT INTO private_sharing (owner_app_id, target_app_id, path, path_label, counter)
			VALUES (`+appRowByName+`, `+appRowByName+`, ?, ?, 1)
			ON CONFLICT (owner_app_id, target_app_id, path) DO UPDATE SET counter = counter + 1`,
			ownerAppID, targetAppID, path, pathLabel)
		if err != nil {
			return err
		}
		count, err = queryInt(conn, `
			SELECT counter FROM private_sharing
			WHERE owner_app_id = `+appRowByName+` AND target_app_id = `+appRowByName+` AND path = ?`,
			ownerAppID, targetAppID, path)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("recording share of %s with %s: %w", path, targetAppID, err)
	}
	return count, nil
}

// DropSharing records one drop of a share and returns the remaining
// count; the share is deleted when it reaches zero. ErrNotFound means
// the share does not exist.
func (db *DB) DropSharing(ctx context.Context, ownerAppID, targetAppID, path string) (int, error) {
	var count int
	err := db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn, `
			SELECT counter FROM private_sharing
			WHERE owner_app_id = `+appRowByName+` AND target_app_id = `+appRowByName+` AND path = ?`,
			ownerAppID, targetAppID, path)
		if err != nil {
			return err
		}
		count--
		if count > 0 {
			return exec(conn, `
				UPDATE private_sharing SET counter = ?
				WHERE owner_app_id = `+appRowByName+` AND target_app_id = `+appRowByName+` AND path = ?`,
				count, ownerAppID, targetAppID, path)
		}
		return exec(conn, `
			DELETE FROM private_sharing
			WHERE owner_app_id = `+appRowByName+` AND target_app_id = `+appRowByName+` AND path = ?`,
			ownerAppID, targetAppID, path)
	})
	if err != nil {
		return 0, fmt.Errorf("dropping share of %s with %s: %w", path, targetAppID, err)
	}
	return count, nil
}

// PathShared reports whether path is shared with any target.
func (db *DB) PathShared(ctx context.Context, path string) (bool, error) {
	var count int
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn, "SELECT count(*) FROM private_sharing WHERE path = ?", path)
		return err
	})
	return count > 0, err
}

// TargetSharing reports whether any application of ownerPkgID shares
// a path with targetAppID.
func (db *DB) TargetSharing(ctx context.Context, ownerPkgID, targetAppID string) (bool, error) {
	var count int
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn, `
			SELECT count(*) FROM private_sharing
			JOIN app AS owner ON private_sharing.owner_app_id = owner.app_id
			JOIN pkg ON owner.pkg_id = pkg.pkg_id
			WHERE pkg.name = ? AND private_sharing.target_app_id = `+appRowByName,
			ownerPkgID, targetAppID)
		return err
	})
	return count > 0, err
}

// AppShares returns the shares appID takes part in as owner or target.
func (db *DB) AppShares(ctx context.Context, appID string) ([]Share, error) {
	var shares []Share
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT owner.name, target.name, path, path_label, counter FROM private_sharing
			JOIN app AS owner ON private_sharing.owner_app_id = owner.app_id
			JOIN app AS target ON private_sharing.target_app_id = target.app_id
			WHERE owner.name = ?1 OR target.name = ?1
			ORDER BY owner.name, target.name, path`, &sqlitex.ExecOptions{
			Args: []any{appID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				shares = append(shares, Share{
					OwnerAppID:  stmt.ColumnText(0),
					TargetAppID: stmt.ColumnText(1),
					Path:        stmt.ColumnText(2),
					PathLabel:   stmt.ColumnText(3),
					Count:       stmt.ColumnInt(4),
				})
				return nil
			},
		})
	})
	return shares, err
}
