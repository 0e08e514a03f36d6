// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/bureau-foundation/secmgr/lib/pkgdb"
	"github.com/bureau-foundation/secmgr/lib/privilege"
	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/service"
)

// allowLevel is the level that grants a privilege.
func (s *Service) allowLevel() string {
	return s.levels[len(s.levels)-1]
}

// effectiveLevel combines the levels of both buckets: the more
// restrictive wins, and no record at all means allowed.
func (s *Service) effectiveLevel(levels map[pkgdb.Bucket]string) string {
	effective := len(s.levels) - 1
	for _, level := range levels {
		if rank := slices.Index(s.levels, level); rank >= 0 && rank < effective {
			effective = rank
		}
	}
	return s.levels[effective]
}

// hasPrivilege reports whether appID was installed with privilege for
// uid (or globally) and no policy level withholds it.
func (s *Service) hasPrivilege(ctx context.Context, appID, privilegeName string, uid int) (bool, error) {
	privileges, err := s.db.AppPrivileges(ctx, appID, uid, s.globalUID)
	if err != nil {
		return false, err
	}
	if !slices.Contains(privileges, privilegeName) {
		return false, nil
	}
	levels, err := s.db.Levels(ctx, uid, appID, privilegeName)
	if err != nil {
		return false, err
	}
	return s.effectiveLevel(levels) == s.allowLevel(), nil
}

// appGroups answers AppGetGroups for the caller's uid.
func (s *Service) appGroups(ctx context.Context, creds service.Credentials, appID string) (protocol.Response, error) {
	if _, err := s.packageOf(ctx, appID); err != nil {
		return nil, err
	}
	privileges, err := s.db.AppPrivileges(ctx, appID, creds.UID, s.globalUID)
	if err != nil {
		return nil, err
	}
	var allowed []string
	for _, name := range privileges {
		ok, err := s.hasPrivilege(ctx, appID, name, creds.UID)
		if err != nil {
			return nil, err
		}
		if ok {
			allowed = append(allowed, name)
		}
	}
	gids, err := privilege.ResolveGIDs(s.privileges.Groups(allowed), s.lookupGroup)
	if err != nil {
		return nil, err
	}
	return &protocol.GroupIDs{GIDs: gids}, nil
}

// isAdmin reports whether the caller may set administrator levels.
func (s *Service) isAdmin(ctx context.Context, creds service.Credentials) (bool, error) {
	if creds.Root() {
		return true, nil
	}
	userType, err := s.db.UserType(ctx, creds.UID)
	if errors.Is(err, pkgdb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return userType == protocol.UserAdmin, nil
}

// parseUser converts a policy entry user to a uid.
func parseUser(user string) (int, error) {
	if user == protocol.Wildcard {
		return pkgdb.AnyUID, nil
	}
	uid, err := strconv.Atoi(user)
	if err != nil || uid < 0 {
		return 0, protocol.Errorf(protocol.ResultInputParam, "invalid policy user %q", user)
	}
	return uid, nil
}

func formatUser(uid int) string {
	if uid == pkgdb.AnyUID {
		return protocol.Wildcard
	}
	return strconv.Itoa(uid)
}

func (s *Service) updatePolicy(ctx context.Context, creds service.Credentials, entries []protocol.PolicyEntry) error {
	admin, err := s.isAdmin(ctx, creds)
	if err != nil {
		return err
	}

	var records []pkgdb.PolicyRecord
	for _, entry := range entries {
		uid, err := parseUser(entry.User)
		if err != nil {
			return err
		}
		if entry.CurrentLevel != "" {
			if !slices.Contains(s.levels, entry.CurrentLevel) {
				return protocol.Errorf(protocol.ResultInputParam, "unknown policy level %q", entry.CurrentLevel)
			}
			if !admin && uid != creds.UID {
				return protocol.Errorf(protocol.ResultAccessDenied,
					"uid %d may only set its own levels", creds.UID)
			}
			records = append(records, pkgdb.PolicyRecord{
				UID: uid, AppID: entry.AppID, Privilege: entry.Privilege,
				Bucket: pkgdb.BucketSelf, Level: entry.CurrentLevel,
			})
		}
		if entry.MaxLevel != "" {
			if !slices.Contains(s.levels, entry.MaxLevel) {
				return protocol.Errorf(protocol.ResultInputParam, "unknown policy level %q", entry.MaxLevel)
			}
			if !admin {
				return protocol.Errorf(protocol.ResultAccessDenied,
					"uid %d may not set administrator levels", creds.UID)
			}
			records = append(records, pkgdb.PolicyRecord{
				UID: uid, AppID: entry.AppID, Privilege: entry.Privilege,
				Bucket: pkgdb.BucketAdmin, Level: entry.MaxLevel,
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.SetPolicy(ctx, records)
}

// matches reports whether value passes a filter field; an empty or
// wildcard filter matches anything.
func matches(filter, value string) bool {
	return filter == "" || filter == protocol.Wildcard || filter == value
}

func (s *Service) policy(ctx context.Context, creds service.Credentials, scope protocol.PolicyScope, filter protocol.PolicyEntry) (protocol.Response, error) {
	admin, err := s.isAdmin(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !admin {
		own := strconv.Itoa(creds.UID)
		if !matches(filter.User, own) {
			return nil, protocol.Errorf(protocol.ResultAccessDenied,
				"uid %d may only list its own policy", creds.UID)
		}
		filter.User = own
	}

	switch scope {
	case protocol.PolicyAdmin:
		if !admin {
			return nil, protocol.Errorf(protocol.ResultAccessDenied, "uid %d may not list administrator levels", creds.UID)
		}
		return s.bucketPolicy(ctx, pkgdb.BucketAdmin, filter)
	case protocol.PolicySelf:
		return s.bucketPolicy(ctx, pkgdb.BucketSelf, filter)
	default:
		return s.effectivePolicy(ctx, creds, filter)
	}
}

// bucketPolicy lists the stored records of one bucket.
func (s *Service) bucketPolicy(ctx context.Context, bucket pkgdb.Bucket, filter protocol.PolicyEntry) (protocol.Response, error) {
	records, err := s.db.Policy(ctx, bucket)
	if err != nil {
		return nil, err
	}
	entries := []protocol.PolicyEntry{}
	for _, record := range records {
		entry := protocol.PolicyEntry{
			User:      formatUser(record.UID),
			AppID:     record.AppID,
			Privilege: record.Privilege,
		}
		if !matches(filter.User, entry.User) || !matches(filter.AppID, entry.AppID) || !matches(filter.Privilege, entry.Privilege) {
			continue
		}
		if bucket == pkgdb.BucketAdmin {
			entry.MaxLevel = record.Level
		} else {
			entry.CurrentLevel = record.Level
		}
		entries = append(entries, entry)
	}
	return &protocol.Policy{Entries: entries}, nil
}

// effectivePolicy lists, for one user, every privilege of every
// application visible to it with the level in force and the
// administrator ceiling.
func (s *Service) effectivePolicy(ctx context.Context, creds service.Credentials, filter protocol.PolicyEntry) (protocol.Response, error) {
	uid := creds.UID
	if filter.User != "" && filter.User != protocol.Wildcard {
		parsed, err := parseUser(filter.User)
		if err != nil {
			return nil, err
		}
		uid = parsed
	}

	local, err := s.db.UserApps(ctx, uid)
	if err != nil {
		return nil, err
	}
	global, err := s.db.UserApps(ctx, s.globalUID)
	if err != nil {
		return nil, err
	}
	apps := append(local, global...)
	slices.Sort(apps)
	apps = slices.Compact(apps)

	entries := []protocol.PolicyEntry{}
	for _, appID := range apps {
		if !matches(filter.AppID, appID) {
			continue
		}
		privileges, err := s.db.AppPrivileges(ctx, appID, uid, s.globalUID)
		if err != nil {
			return nil, err
		}
		for _, name := range privileges {
			if !matches(filter.Privilege, name) {
				continue
			}
			levels, err := s.db.Levels(ctx, uid, appID, name)
			if err != nil {
				return nil, err
			}
			maxLevel, ok := levels[pkgdb.BucketAdmin]
			if !ok {
				maxLevel = s.allowLevel()
			}
			entries = append(entries, protocol.PolicyEntry{
				User:         strconv.Itoa(uid),
				AppID:        appID,
				Privilege:    name,
				CurrentLevel: s.effectiveLevel(levels),
				MaxLevel:     maxLevel,
			})
		}
	}
	return &protocol.Policy{Entries: entries}, nil
}
