// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bureau-foundation/secmgr/lib/label"
)

// Opcode identifies a request type on the wire.
type Opcode int

const (
	OpAppInstall Opcode = iota
	OpAppUninstall
	OpAppGetPkgID
	OpAppGetGroups
	OpUserAdd
	OpUserDelete
	OpPolicyUpdate
	OpPolicyGet
	OpPolicyGetAdmin
	OpPolicyGetSelf
	OpPolicyLevels
	OpGroupsGet
	OpAppHasPrivilege
	OpShareApply
	OpShareDrop
)

var opcodeNames = map[Opcode]string{
	OpAppInstall:      "app-install",
	OpAppUninstall:    "app-uninstall",
	OpAppGetPkgID:     "app-get-pkg-id",
	OpAppGetGroups:    "app-get-groups",
	OpUserAdd:         "user-add",
	OpUserDelete:      "user-delete",
	OpPolicyUpdate:    "policy-update",
	OpPolicyGet:       "policy-get",
	OpPolicyGetAdmin:  "policy-get-admin",
	OpPolicyGetSelf:   "policy-get-self",
	OpPolicyLevels:    "policy-levels",
	OpGroupsGet:       "groups-get",
	OpAppHasPrivilege: "app-has-privilege",
	OpShareApply:      "share-apply",
	OpShareDrop:       "share-drop",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "opcode(" + strconv.Itoa(int(o)) + ")"
}

// Request is a message a client sends to the service. The set of
// implementations is closed; see ReadRequest.
type Request interface {
	Opcode() Opcode

	// Validate checks the request before it is sent and again when
	// the service receives it. Failures are *ResultError.
	Validate() error

	encode(w *writer)
	decode(r *reader)
}

// WriteRequest encodes req to w.
func WriteRequest(w io.Writer, req Request) error {
	out := newWriter(w)
	out.put(int(req.Opcode()))
	req.encode(out)
	return out.err
}

// ReadRequest decodes one request from r.
func ReadRequest(r io.Reader) (Request, error) {
	in := newReader(r)
	op := Opcode(in.int("opcode"))
	if in.err != nil {
		return nil, in.err
	}

	var req Request
	switch op {
	case OpAppInstall:
		req = &AppInstall{}
	case OpAppUninstall:
		req = &AppUninstall{}
	case OpAppGetPkgID:
		req = &AppGetPkgID{}
	case OpAppGetGroups:
		req = &AppGetGroups{}
	case OpUserAdd:
		req = &UserAdd{}
	case OpUserDelete:
		req = &UserDelete{}
	case OpPolicyUpdate:
		req = &PolicyUpdate{}
	case OpPolicyGet:
		req = &PolicyGet{Scope: PolicyEffective}
	case OpPolicyGetAdmin:
		req = &PolicyGet{Scope: PolicyAdmin}
	case OpPolicyGetSelf:
		req = &PolicyGet{Scope: PolicySelf}
	case OpPolicyLevels:
		req = &PolicyLevels{}
	case OpGroupsGet:
		req = &GroupsGet{}
	case OpAppHasPrivilege:
		req = &AppHasPrivilege{}
	case OpShareApply:
		req = &ShareApply{}
	case OpShareDrop:
		req = &ShareDrop{}
	default:
		return nil, &DecodeError{Field: "opcode", Err: fmt.Errorf("unknown opcode %d", int(op))}
	}
	req.decode(in)
	if in.err != nil {
		return nil, in.err
	}
	return req, nil
}

// AppInstall registers an application and grants its rules.
type AppInstall struct {
	AppID       string
	PkgID       string
	UID         int
	AuthorName  string
	InstallType InstallType
	Privileges  []string
	Paths       []AppPath
}

func (*AppInstall) Opcode() Opcode { return OpAppInstall }

func (m *AppInstall) Validate() error {
	if m.AppID == "" || m.PkgID == "" {
		return Errorf(ResultReqNotComplete, "application and package ids are required")
	}
	if err := validateID("application", m.AppID); err != nil {
		return err
	}
	if err := validateID("package", m.PkgID); err != nil {
		return err
	}
	if m.UID < 0 {
		return Errorf(ResultInputParam, "invalid uid %d", m.UID)
	}
	if m.InstallType < InstallNone || m.InstallType >= installTypeEnd {
		return Errorf(ResultInputParam, "invalid installation type %d", m.InstallType)
	}
	for _, privilege := range m.Privileges {
		if privilege == "" {
			return Errorf(ResultInputParam, "empty privilege")
		}
	}
	for _, path := range m.Paths {
		if path.Path == "" {
			return Errorf(ResultInputParam, "empty path")
		}
		if path.Type < PathRW || path.Type >= pathTypeEnd {
			return Errorf(ResultInputParam, "invalid type %d for path %s", path.Type, path.Path)
		}
	}
	return nil
}

func (m *AppInstall) encode(w *writer) {
	w.put(m.AppID)
	w.put(m.PkgID)
	w.put(m.UID)
	w.put(m.AuthorName)
	w.put(int(m.InstallType))
	w.strings(m.Privileges)
	w.put(len(m.Paths))
	for _, path := range m.Paths {
		w.put(path.Path)
		w.put(int(path.Type))
	}
}

func (m *AppInstall) decode(r *reader) {
	m.AppID = r.string("app id")
	m.PkgID = r.string("package id")
	m.UID = r.int("uid")
	m.AuthorName = r.string("author")
	m.InstallType = InstallType(r.int("installation type"))
	m.Privileges = r.strings("privileges")
	n := r.count("paths")
	for i := 0; i < n && r.err == nil; i++ {
		path := r.string("path")
		pathType := PathType(r.int("path type"))
		m.Paths = append(m.Paths, AppPath{Path: path, Type: pathType})
	}
	if r.err != nil {
		m.Paths = nil
	}
}

// AppUninstall removes an application and revokes its rules.
type AppUninstall struct {
	AppID       string
	UID         int
	InstallType InstallType
}

func (*AppUninstall) Opcode() Opcode { return OpAppUninstall }

func (m *AppUninstall) Validate() error {
	if m.AppID == "" {
		return Errorf(ResultReqNotComplete, "application id is required")
	}
	if err := validateID("application", m.AppID); err != nil {
		return err
	}
	if m.UID < 0 {
		return Errorf(ResultInputParam, "invalid uid %d", m.UID)
	}
	if m.InstallType < InstallNone || m.InstallType >= installTypeEnd {
		return Errorf(ResultInputParam, "invalid installation type %d", m.InstallType)
	}
	return nil
}

func (m *AppUninstall) encode(w *writer) {
	w.put(m.AppID)
	w.put(m.UID)
	w.put(int(m.InstallType))
}

func (m *AppUninstall) decode(r *reader) {
	m.AppID = r.string("app id")
	m.UID = r.int("uid")
	m.InstallType = InstallType(r.int("installation type"))
}

// AppGetPkgID asks for the package an application belongs to.
type AppGetPkgID struct {
	AppID string
}

func (*AppGetPkgID) Opcode() Opcode { return OpAppGetPkgID }

func (m *AppGetPkgID) Validate() error { return requireApp(m.AppID) }

func (m *AppGetPkgID) encode(w *writer) { w.put(m.AppID) }

func (m *AppGetPkgID) decode(r *reader) { m.AppID = r.string("app id") }

// AppGetGroups asks for the supplementary groups an application's
// privileges grant to the calling user.
type AppGetGroups struct {
	AppID string
}

func (*AppGetGroups) Opcode() Opcode { return OpAppGetGroups }

func (m *AppGetGroups) Validate() error { return requireApp(m.AppID) }

func (m *AppGetGroups) encode(w *writer) { w.put(m.AppID) }

func (m *AppGetGroups) decode(r *reader) { m.AppID = r.string("app id") }

// UserAdd registers a platform user.
type UserAdd struct {
	UID  int
	Type UserType
}

func (*UserAdd) Opcode() Opcode { return OpUserAdd }

func (m *UserAdd) Validate() error {
	if m.UID < 0 {
		return Errorf(ResultInputParam, "invalid uid %d", m.UID)
	}
	if m.Type <= UserNone || m.Type >= userTypeEnd {
		return Errorf(ResultInputParam, "invalid user type %d", m.Type)
	}
	return nil
}

func (m *UserAdd) encode(w *writer) {
	w.put(m.UID)
	w.put(int(m.Type))
}

func (m *UserAdd) decode(r *reader) {
	m.UID = r.int("uid")
	m.Type = UserType(r.int("user type"))
}

// UserDelete removes a platform user and its local applications.
type UserDelete struct {
	UID int
}

func (*UserDelete) Opcode() Opcode { return OpUserDelete }

func (m *UserDelete) Validate() error {
	if m.UID < 0 {
		return Errorf(ResultInputParam, "invalid uid %d", m.UID)
	}
	return nil
}

func (m *UserDelete) encode(w *writer) { w.put(m.UID) }

func (m *UserDelete) decode(r *reader) { m.UID = r.int("uid") }

// PolicyUpdate changes privilege levels.
type PolicyUpdate struct {
	Entries []PolicyEntry
}

func (*PolicyUpdate) Opcode() Opcode { return OpPolicyUpdate }

func (m *PolicyUpdate) Validate() error {
	if len(m.Entries) == 0 {
		return Errorf(ResultInputParam, "no policy entries")
	}
	for _, entry := range m.Entries {
		if entry.User == "" || entry.AppID == "" || entry.Privilege == "" {
			return Errorf(ResultInputParam, "policy entry needs user, application, and privilege")
		}
		if entry.CurrentLevel == "" && entry.MaxLevel == "" {
			return Errorf(ResultInputParam, "policy entry for %s/%s sets no level", entry.AppID, entry.Privilege)
		}
	}
	return nil
}

func (m *PolicyUpdate) encode(w *writer) { encodeEntries(w, m.Entries) }

func (m *PolicyUpdate) decode(r *reader) { m.Entries = decodeEntries(r) }

// PolicyGet lists policy entries matching Filter. Empty or Wildcard
// fields in Filter match anything.
type PolicyGet struct {
	Scope  PolicyScope
	Filter PolicyEntry
}

func (m *PolicyGet) Opcode() Opcode {
	switch m.Scope {
	case PolicyAdmin:
		return OpPolicyGetAdmin
	case PolicySelf:
		return OpPolicyGetSelf
	default:
		return OpPolicyGet
	}
}

func (m *PolicyGet) Validate() error {
	if m.Scope < PolicyEffective || m.Scope > PolicySelf {
		return Errorf(ResultInputParam, "invalid policy scope %d", m.Scope)
	}
	return nil
}

func (m *PolicyGet) encode(w *writer) { encodeEntry(w, m.Filter) }

func (m *PolicyGet) decode(r *reader) { m.Filter = decodeEntry(r) }

// PolicyLevels asks for the configured level descriptions, most
// restrictive first.
type PolicyLevels struct{}

func (*PolicyLevels) Opcode() Opcode   { return OpPolicyLevels }
func (*PolicyLevels) Validate() error  { return nil }
func (*PolicyLevels) encode(w *writer) {}
func (*PolicyLevels) decode(r *reader) {}

// GroupsGet asks for every group name that some privilege maps to.
type GroupsGet struct{}

func (*GroupsGet) Opcode() Opcode   { return OpGroupsGet }
func (*GroupsGet) Validate() error  { return nil }
func (*GroupsGet) encode(w *writer) {}
func (*GroupsGet) decode(r *reader) {}

// AppHasPrivilege asks whether an application holds a privilege for a
// user.
type AppHasPrivilege struct {
	AppID     string
	Privilege string
	UID       int
}

func (*AppHasPrivilege) Opcode() Opcode { return OpAppHasPrivilege }

func (m *AppHasPrivilege) Validate() error {
	if err := requireApp(m.AppID); err != nil {
		return err
	}
	if m.Privilege == "" {
		return Errorf(ResultInputParam, "privilege is required")
	}
	if m.UID < 0 {
		return Errorf(ResultInputParam, "invalid uid %d", m.UID)
	}
	return nil
}

func (m *AppHasPrivilege) encode(w *writer) {
	w.put(m.AppID)
	w.put(m.Privilege)
	w.put(m.UID)
}

func (m *AppHasPrivilege) decode(r *reader) {
	m.AppID = r.string("app id")
	m.Privilege = r.string("privilege")
	m.UID = r.int("uid")
}

// Sharing names paths of the owner application shared with the
// target application.
type Sharing struct {
	OwnerAppID  string
	TargetAppID string
	Paths       []string
}

func (m *Sharing) Validate() error {
	if m.OwnerAppID == "" || m.TargetAppID == "" || len(m.Paths) == 0 {
		return Errorf(ResultReqNotComplete, "owner, target, and paths are required")
	}
	if err := validateID("owner", m.OwnerAppID); err != nil {
		return err
	}
	if err := validateID("target", m.TargetAppID); err != nil {
		return err
	}
	for _, path := range m.Paths {
		if path == "" {
			return Errorf(ResultInputParam, "empty path")
		}
	}
	return nil
}

func (m *Sharing) encode(w *writer) {
	w.put(m.OwnerAppID)
	w.put(m.TargetAppID)
	w.strings(m.Paths)
}

func (m *Sharing) decode(r *reader) {
	m.OwnerAppID = r.string("owner app id")
	m.TargetAppID = r.string("target app id")
	m.Paths = r.strings("paths")
}

// ShareApply shares private paths with another application.
type ShareApply struct{ Sharing }

func (*ShareApply) Opcode() Opcode { return OpShareApply }

// ShareDrop withdraws paths shared by ShareApply.
type ShareDrop struct{ Sharing }

func (*ShareDrop) Opcode() Opcode { return OpShareDrop }

func requireApp(appID string) error {
	if appID == "" {
		return Errorf(ResultInputParam, "application id is required")
	}
	return validateID("application", appID)
}

// validateID rejects identifiers that cannot be embedded in a label.
func validateID(kind, id string) error {
	if err := label.Validate(label.Process(id)); err != nil {
		return Errorf(ResultInputParam, "%s id %q: %v", kind, id, err)
	}
	return nil
}

func encodeEntry(w *writer, entry PolicyEntry) {
	w.put(entry.User)
	w.put(entry.AppID)
	w.put(entry.Privilege)
	w.put(entry.CurrentLevel)
	w.put(entry.MaxLevel)
}

func decodeEntry(r *reader) PolicyEntry {
	return PolicyEntry{
		User:         r.string("user"),
		AppID:        r.string("app id"),
		Privilege:    r.string("privilege"),
		CurrentLevel: r.string("current level"),
		MaxLevel:     r.string("max level"),
	}
}

func encodeEntries(w *writer, entries []PolicyEntry) {
	w.put(len(entries))
	for _, entry := range entries {
		encodeEntry(w, entry)
	}
}

func decodeEntries(r *reader) []PolicyEntry {
	n := r.count("policy entries")
	entries := make([]PolicyEntry, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		entries = append(entries, decodeEntry(r))
	}
	if r.err != nil {
		return nil
	}
	return entries
}
