// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the request and response messages exchanged
// between security manager clients and the privileged service, and
// their wire encoding.
//
// A request is an [Opcode] followed by the fields of one [Request]
// type in a fixed order. A response is a [Result] followed, on
// success only, by the fields of the matching [Response] type. Every
// value is one CBOR data item written back to back (an RFC 8742 CBOR
// sequence), so a message is decoded field by field in the same order
// it was written. Lists are a count followed by that many records.
//
// [ReadRequest] is the single place that maps an opcode to a request
// type. A truncated or malformed payload is a [*DecodeError]; the
// decoder never substitutes default values for missing fields.
//
// Errors carry a [Result] so that every failure a client sees maps to
// one stable code: [*ResultError] for input validation and service
// refusals, [*TransportError] when the service could not be reached,
// and [*DecodeError] for malformed messages. [CodeOf] extracts the
// code from any error.
package protocol
