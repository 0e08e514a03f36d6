// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): smallest
// integer encoding, no indefinite-length items. The same message
// always produces identical bytes.
var encMode cbor.EncMode

// decMode rejects indefinite-length items and caps container sizes so
// a hostile peer cannot make the service allocate without bound.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  16,
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 12,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v as one CBOR data item.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR data item from data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder writes a CBOR sequence: one data item per Encode call.
type Encoder = cbor.Encoder

// Decoder reads a CBOR sequence: one data item per Decode call. Decode
// returns io.EOF when the stream ends between items and
// io.ErrUnexpectedEOF when it ends inside one.
type Decoder = cbor.Decoder

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the diagnostic notation (RFC 8949 §8) of every item
// in a CBOR sequence, one per line.
func Diagnose(data []byte) (string, error) {
	var out []byte
	for len(data) > 0 {
		item, rest, err := cbor.DiagnoseFirst(data)
		if err != nil {
			return string(out), err
		}
		out = append(out, item...)
		out = append(out, '\n')
		data = rest
	}
	return string(out), nil
}
