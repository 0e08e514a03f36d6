// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/secmgr/lib/codec"
)

// maxListLength bounds every count prefix a decoder accepts.
const maxListLength = 1 << 16

// writer encodes consecutive fields and keeps the first error.
type writer struct {
	encoder *codec.Encoder
	err     error
}

func newWriter(w io.Writer) *writer {
	return &writer{encoder: codec.NewEncoder(w)}
}

func (w *writer) put(value any) {
	if w.err != nil {
		return
	}
	w.err = w.encoder.Encode(value)
}

func (w *writer) strings(values []string) {
	w.put(len(values))
	for _, value := range values {
		w.put(value)
	}
}

// reader decodes consecutive fields. After the first failure every
// call is a no-op and err holds a *DecodeError naming the field.
type reader struct {
	decoder *codec.Decoder
	err     error
}

func newReader(r io.Reader) *reader {
	return &reader{decoder: codec.NewDecoder(r)}
}

func (r *reader) get(field string, target any) {
	if r.err != nil {
		return
	}
	if err := r.decoder.Decode(target); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		r.err = &DecodeError{Field: field, Err: err}
	}
}

func (r *reader) string(field string) string {
	var value string
	r.get(field, &value)
	return value
}

func (r *reader) int(field string) int {
	var value int
	r.get(field, &value)
	return value
}

func (r *reader) bool(field string) bool {
	var value bool
	r.get(field, &value)
	return value
}

// count reads a list length prefix.
func (r *reader) count(field string) int {
	n := r.int(field + " count")
	if r.err != nil {
		return 0
	}
	if n < 0 || n > maxListLength {
		r.err = &DecodeError{Field: field + " count", Err: fmt.Errorf("%d out of range", n)}
		return 0
	}
	return n
}

func (r *reader) strings(field string) []string {
	n := r.count(field)
	values := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		values = append(values, r.string(field))
	}
	if r.err != nil {
		return nil
	}
	return values
}
