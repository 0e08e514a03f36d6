// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgdb

const schema = `
CREATE TABLE IF NOT EXISTS author (
	author_id INTEGER PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS pkg (
	pkg_id    INTEGER PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	author_id INTEGER REFERENCES author(author_id),
	shared_ro INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS app (
	app_id INTEGER PRIMARY KEY,
	name   TEXT NOT NULL UNIQUE,
	pkg_id INTEGER NOT NULL REFERENCES pkg(pkg_id)
);

CREATE TABLE IF NOT EXISTS user_app (
	app_id INTEGER NOT NULL REFERENCES app(app_id) ON DELETE CASCADE,
	uid    INTEGER NOT NULL,
	PRIMARY KEY (app_id, uid)
);

CREATE TABLE IF NOT EXISTS app_privilege (
	app_id    INTEGER NOT NULL REFERENCES app(app_id) ON DELETE CASCADE,
	uid       INTEGER NOT NULL,
	privilege TEXT NOT NULL,
	PRIMARY KEY (app_id, uid, privilege)
);

CREATE TABLE IF NOT EXISTS app_path (
	app_id INTEGER NOT NULL REFERENCES app(app_id) ON DELETE CASCADE,
	path   TEXT NOT NULL,
	type   INTEGER NOT NULL,
	PRIMARY KEY (app_id, path)
);

CREATE TABLE IF NOT EXISTS users (
	uid  INTEGER PRIMARY KEY,
	type INTEGER NOT NULL
);

-- uid -1 and '*' are wildcards. bucket 0 holds levels users set for
-- themselves, bucket 1 levels set by an administrator.
CREATE TABLE IF NOT EXISTS policy (
	uid       INTEGER NOT NULL,
	app       TEXT NOT NULL,
	privilege TEXT NOT NULL,
	bucket    INTEGER NOT NULL,
	level     TEXT NOT NULL,
	PRIMARY KEY (uid, app, privilege, bucket)
);

CREATE TABLE IF NOT EXISTS private_sharing (
	owner_app_id  INTEGER NOT NULL REFERENCES app(app_id) ON DELETE CASCADE,
	target_app_id INTEGER NOT NULL REFERENCES app(app_id) ON DELETE CASCADE,
	path          TEXT NOT NULL,
	path_label    TEXT NOT NULL,
	counter       INTEGER NOT NULL,
	PRIMARY KEY (owner_app_id, target_app_id, path)
);

CREATE INDEX IF NOT EXISTS private_sharing_path ON private_sharing (path);
`
