// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode"
	"unicode/utf8"
)

// objectReplacement marks where an attachment sits inside attributed text.
const objectReplacement = '\uFFFC'

var nsStringMarker = []byte("NSString")

// typedstreamNoise are class and attribute names that appear as printable
// runs in an archived attributed string but are never message text.
var typedstreamNoise = map[string]bool{
	"streamtyped":               true,
	"NSAttributedString":        true,
	"NSMutableAttributedString": true,
	"NSObject":                  true,
	"NSString":                  true,
	"NSMutableString":           true,
	"NSDictionary":              true,
	"NSMutableDictionary":       true,
	"NSNumber":                  true,
	"NSValue":                   true,
	"NSArray":                   true,
	"NSData":                    true,
	"NSURL":                     true,
	"NSColor":                   true,
	"NSFont":                    true,
	"NSParagraphStyle":          true,
	"NSLink":                    true,
	"NSAttachment":              true,
	"NSTextAttachment":          true,
	"NSFileWrapper":             true,
}

// noisePrefixes catch the long tail of private attribute keys.
var noisePrefixes = []string{"__kIM", "kIM", "$class", "NS.", "com.apple."}

// RecoverText extracts the message text from an archived attributed body.
//
// The fast path reads the NSString payload directly: after the "NSString"
// class name comes a '+' tag and a length, one byte or 0x81 followed by a
// little-endian uint16, then the UTF-8 text. If that fails, the payload is
// split into printable runs, class names and attachment placeholders are
// dropped along with short punctuation artifacts, and the first remaining
// run wins. A single-character result is discarded when the record has an
// attachment, since it is almost always a placeholder.
func RecoverText(payload []byte, hasAttachment bool) string {
	if len(payload) == 0 {
		return ""
	}

	text, ok := decodeNSString(payload)
	if !ok {
		text = firstPrintableRun(payload)
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, string(objectReplacement), ""))
	if hasAttachment && utf8.RuneCountInString(text) <= 1 {
		return ""
	}
	return text
}

// decodeNSString reads the length-prefixed string that follows the first
// NSString marker.
func decodeNSString(payload []byte) (string, bool) {
	idx := bytes.Index(payload, nsStringMarker)
	if idx < 0 {
		return "", false
	}
	rest := payload[idx+len(nsStringMarker):]

	plus := bytes.IndexByte(rest, '+')
	// The tag sits a few bytes after the class name; anything further away
	// is not the string header.
	if plus < 0 || plus > 8 {
		return "", false
	}
	rest = rest[plus+1:]
	if len(rest) == 0 {
		return "", false
	}

	var length int
	switch rest[0] {
	case 0x81:
		if len(rest) < 3 {
			return "", false
		}
		length = int(binary.LittleEndian.Uint16(rest[1:3]))
		rest = rest[3:]
	case 0x82:
		if len(rest) < 5 {
			return "", false
		}
		length = int(binary.LittleEndian.Uint32(rest[1:5]))
		rest = rest[5:]
	default:
		length = int(rest[0])
		rest = rest[1:]
	}

	if length == 0 || length > len(rest) {
		return "", false
	}
	raw := rest[:length]
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// firstPrintableRun returns the first printable run that could be message
// text. The body is archived ahead of its attributes.
func firstPrintableRun(payload []byte) string {
	for _, run := range printableRuns(payload) {
		candidate := strings.TrimSpace(strings.ReplaceAll(run, string(objectReplacement), ""))
		if candidate == "" || isNoise(candidate) || isArtifact(candidate) {
			continue
		}
		return candidate
	}
	return ""
}

func printableRuns(payload []byte) []string {
	var runs []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			runs = append(runs, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(payload); {
		r, size := utf8.DecodeRune(payload[i:])
		i += size
		if r == utf8.RuneError && size <= 1 {
			flush()
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == objectReplacement {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return runs
}

func isNoise(s string) bool {
	if typedstreamNoise[s] {
		return true
	}
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// maxArtifactRunes bounds the length of archive tag bytes that happen to be
// printable, such as '+' or '@'.
const maxArtifactRunes = 2

// isArtifact reports whether s is a short run with no letters, digits or
// symbols. Emoji and numeric codes are real messages.
func isArtifact(s string) bool {
	if utf8.RuneCountInString(s) > maxArtifactRunes {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.So, r) {
			return false
		}
	}
	return true
}
