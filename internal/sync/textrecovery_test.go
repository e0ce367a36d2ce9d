// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"strings"
	"testing"
)

func TestRecoverText(t *testing.T) {
	long := strings.Repeat("long message ", 25)

	tests := []struct {
		name          string
		payload       []byte
		hasAttachment bool
		want          string
	}{
		{
			name:    "empty payload",
			payload: nil,
			want:    "",
		},
		{
			name:    "short nsstring",
			payload: archived("Running late, 10 min"),
			want:    "Running late, 10 min",
		},
		{
			name:    "two byte length",
			payload: archived(long),
			want:    strings.TrimSpace(long),
		},
		{
			name:    "unicode text",
			payload: archived("on my way 🚗 café"),
			want:    "on my way 🚗 café",
		},
		{
			name:          "attachment placeholder stripped",
			payload:       archived("\uFFFCcheck this out"),
			hasAttachment: true,
			want:          "check this out",
		},
		{
			name:          "single character dropped with attachment",
			payload:       archived("\uFFFCa"),
			hasAttachment: true,
			want:          "",
		},
		{
			name:    "single character kept without attachment",
			payload: archived("k"),
			want:    "k",
		},
		{
			name:    "printable run fallback",
			payload: []byte("\x04\x0bstreamtyped\x81\x84NSAttributedString\x00\x84\x02hello from fallback\x00\x86NSDictionary\x00__kIMMessagePartAttributeName\x00\x92"),
			want:    "hello from fallback",
		},
		{
			name:    "fallback drops short artifacts",
			payload: []byte("\x00\x01+\x00\x02@*\x00ok\x00\x03$classname\x00"),
			want:    "ok",
		},
		{
			name:    "fallback keeps first candidate",
			payload: []byte("\x00hi there\x00\x01someAttributeKeyNameLonger\x00"),
			want:    "hi there",
		},
		{
			name:    "fallback keeps emoji",
			payload: []byte("\x00\x01\xf0\x9f\x91\x8d\x00"),
			want:    "\U0001F44D",
		},
		{
			name:    "fallback keeps numeric code",
			payload: []byte("\x00\x01 482913 \x00\x02iI\x00"),
			want:    "482913",
		},
		{
			name:    "fallback skips punctuation before text",
			payload: []byte("\x00\x01+\x00\x02?!\x00\x03ok\x00"),
			want:    "ok",
		},
		{
			name:    "truncated length falls back",
			payload: []byte("NSString\x01\x94\x84\x01+\x7fshort\x00"),
			want:    "short",
		},
		{
			name:    "noise only",
			payload: []byte("\x00NSMutableAttributedString\x00NSObject\x00NS.rangeval\x00com.apple.messages.text\x00"),
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecoverText(tt.payload, tt.hasAttachment); got != tt.want {
				t.Errorf("RecoverText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeNSString_RejectsDistantTag(t *testing.T) {
	payload := []byte("NSString\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00+\x05hello")
	if _, ok := decodeNSString(payload); ok {
		t.Error("decodeNSString accepted a tag far from the class name")
	}
}
