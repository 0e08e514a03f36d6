// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by the security
// manager's client and service.
//
// Messages on the service socket are CBOR sequences (RFC 8742): data
// items written back to back with no framing. A stream encoder writes
// each field as it is produced and a stream decoder reads them back in
// the same order:
//
//	encoder := codec.NewEncoder(conn)
//	encoder.Encode(opcode)
//	encoder.Encode(appID)
//
//	decoder := codec.NewDecoder(conn)
//	decoder.Decode(&opcode)
//	decoder.Decode(&appID)
//
// The encoder is deterministic, so equal messages are byte-identical.
// The decoder bounds nesting depth and container sizes.
//
// [Diagnose] renders a captured sequence in diagnostic notation for
// debugging.
package codec
