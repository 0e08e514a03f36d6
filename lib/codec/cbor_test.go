// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestSequenceRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, value := range []any{12, "Gallery", true, -1} {
		if err := encoder.Encode(value); err != nil {
			t.Fatalf("Encode(%v): %v", value, err)
		}
	}

	decoder := NewDecoder(&buffer)
	var op, uid int
	var app string
	var flag bool
	for _, target := range []any{&op, &app, &flag, &uid} {
		if err := decoder.Decode(target); err != nil {
			t.Fatalf("Decode: %v", err)
		}
	}
	if op != 12 || app != "Gallery" || !flag || uid != -1 {
		t.Errorf("decoded %d %q %v %d", op, app, flag, uid)
	}

	var extra int
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end = %v, want io.EOF", err)
	}
}

func TestTruncatedItem(t *testing.T) {
	data, err := Marshal("a string long enough to truncate")
	if err != nil {
		t.Fatal(err)
	}
	decoder := NewDecoder(bytes.NewReader(data[:len(data)-4]))
	var value string
	if err := decoder.Decode(&value); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Decode = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := Marshal(value)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs: %x != %x", first, again)
		}
	}
}

func TestDiagnose(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	encoder.Encode(12)
	encoder.Encode("Gallery")

	got, err := Diagnose(buffer.Bytes())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if got != "12\n\"Gallery\"\n" {
		t.Errorf("Diagnose = %q", got)
	}
}

func TestUnmarshalRejectsIndefiniteLength(t *testing.T) {
	// 0x9f 0x01 0xff is an indefinite-length array holding 1.
	var values []int
	if err := Unmarshal([]byte{0x9f, 0x01, 0xff}, &values); err == nil {
		t.Error("indefinite-length array accepted")
	}
}
