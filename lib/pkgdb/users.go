// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/secmgr/lib/protocol"
)

// AddUser registers uid with a type, replacing any earlier type.
func (db *DB) AddUser(ctx context.Context, uid int, userType protocol.UserType) error {
	return db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return exec(conn, "INSERT OR REPLACE INTO users (uid, type) VALUES (?, ?)", uid, int(userType))
	})
}

// RemoveUser forgets uid and every policy entry specific to it.
// Applications still installed for uid are left to the caller.
func (db *DB) RemoveUser(ctx context.Context, uid int) error {
	return db.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := exec(conn, "DELETE FROM users WHERE uid = ?", uid); err != nil {
			return err
		}
		return exec(conn, "DELETE FROM policy WHERE uid = ?", uid)
	})
}

// UserType returns the type of a registered user.
func (db *DB) UserType(ctx context.Context, uid int) (protocol.UserType, error) {
	var userType int
	err := db.pool.Read(ctx, func(conn *sqlite.Conn) error {
		var err error
		userType, err = queryInt(conn, "SELECT type FROM users WHERE uid = ?", uid)
		return err
	})
	if err != nil {
		return protocol.UserNone, fmt.Errorf("user %d: %w", uid, err)
	}
	return protocol.UserType(userType), nil
}
