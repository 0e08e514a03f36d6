// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "io"

// Response is the payload of a successful reply. The set of
// implementations is closed.
type Response interface {
	encode(w *writer)
	decode(r *reader)
}

// Empty is the payload of requests that return nothing but a result.
type Empty struct{}

func (*Empty) encode(w *writer) {}
func (*Empty) decode(r *reader) {}

// PkgID answers AppGetPkgID.
type PkgID struct {
	PkgID string
}

func (m *PkgID) encode(w *writer) { w.put(m.PkgID) }

func (m *PkgID) decode(r *reader) {
	m.PkgID = r.string("package id")
}

// GroupIDs answers AppGetGroups.
type GroupIDs struct {
	GIDs []int
}

func (m *GroupIDs) encode(w *writer) {
	w.put(len(m.GIDs))
	for _, gid := range m.GIDs {
		w.put(gid)
	}
}

func (m *GroupIDs) decode(r *reader) {
	n := r.count("gids")
	gids := make([]int, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		gids = append(gids, r.int("gid"))
	}
	if r.err != nil {
		gids = nil
	}
	m.GIDs = gids
}

// Names answers PolicyLevels and GroupsGet.
type Names struct {
	Names []string
}

func (m *Names) encode(w *writer) { w.strings(m.Names) }

func (m *Names) decode(r *reader) { m.Names = r.strings("names") }

// Policy answers PolicyGet.
type Policy struct {
	Entries []PolicyEntry
}

func (m *Policy) encode(w *writer) { encodeEntries(w, m.Entries) }

func (m *Policy) decode(r *reader) { m.Entries = decodeEntries(r) }

// Privilege answers AppHasPrivilege.
type Privilege struct {
	Allowed bool
}

func (m *Privilege) encode(w *writer) { w.put(m.Allowed) }

func (m *Privilege) decode(r *reader) { m.Allowed = r.bool("allowed") }

// NewResponse returns an empty payload of the type that answers op.
func NewResponse(op Opcode) Response {
	switch op {
	case OpAppGetPkgID:
		return &PkgID{}
	case OpAppGetGroups:
		return &GroupIDs{}
	case OpPolicyLevels, OpGroupsGet:
		return &Names{}
	case OpPolicyGet, OpPolicyGetAdmin, OpPolicyGetSelf:
		return &Policy{}
	case OpAppHasPrivilege:
		return &Privilege{}
	default:
		return &Empty{}
	}
}

// WriteResponse encodes result and, when it is ResultSuccess, the
// payload. A nil payload writes nothing after the result.
func WriteResponse(w io.Writer, result Result, payload Response) error {
	out := newWriter(w)
	out.put(int(result))
	if result == ResultSuccess && payload != nil {
		payload.encode(out)
	}
	return out.err
}

// ReadResponse decodes a reply into payload. A non-success result is
// returned as a *ResultError and payload is left untouched.
func ReadResponse(r io.Reader, payload Response) error {
	in := newReader(r)
	result := Result(in.int("result"))
	if in.err != nil {
		return in.err
	}
	if result != ResultSuccess {
		return &ResultError{Code: result}
	}
	payload.decode(in)
	return in.err
}
