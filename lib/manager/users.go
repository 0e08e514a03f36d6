// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"

	"github.com/bureau-foundation/secmgr/lib/protocol"
	"github.com/bureau-foundation/secmgr/lib/service"
)

func requireRoot(creds service.Credentials) error {
	if !creds.Root() {
		return protocol.Errorf(protocol.ResultAuthenticationFailed, "uid %d is not root", creds.UID)
	}
	return nil
}

func (s *Service) addUser(ctx context.Context, creds service.Credentials, req *protocol.UserAdd) error {
	if err := requireRoot(creds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.AddUser(ctx, req.UID, req.Type); err != nil {
		return err
	}
	if err := s.permissible.InitializeUser(req.UID); err != nil {
		return err
	}
	s.logger.Info("user added", "uid", req.UID, "user_type", req.Type.String())
	return nil
}

// deleteUser uninstalls every local application of uid before
// forgetting it.
func (s *Service) deleteUser(ctx context.Context, creds service.Credentials, uid int) error {
	if err := requireRoot(creds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	apps, err := s.db.UserApps(ctx, uid)
	if err != nil {
		return err
	}
	for _, appID := range apps {
		if err := s.uninstallLocked(ctx, appID, uid); err != nil {
			return err
		}
	}
	if err := s.db.RemoveUser(ctx, uid); err != nil {
		return err
	}
	if err := s.permissible.RemoveUser(uid); err != nil {
		return err
	}
	s.logger.Info("user removed", "uid", uid, "apps_removed", len(apps))
	if len(apps) == 0 {
		return nil
	}
	return s.merge()
}
