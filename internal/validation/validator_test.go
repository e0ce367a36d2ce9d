// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package validation

import (
	"strings"
	"testing"
)

type sendBody struct {
	RecipientID   string `json:"recipient_id" validate:"required,handle"`
	Text          string `json:"text" validate:"required_without=AttachmentRef,max=100"`
	AttachmentRef string `json:"attachment_ref" validate:"omitempty,localpath"`
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=16,printascii"`
	Internal      int    `json:"-" validate:"min=0"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sendBody
		wantField string
		wantTag   string
	}{
		{
			name:  "text to phone",
			input: sendBody{RecipientID: "+1 (555) 123-4567", Text: "hi"},
		},
		{
			name:  "attachment only to email",
			input: sendBody{RecipientID: "Friend@Example.com", AttachmentRef: "/tmp/a.jpg"},
		},
		{
			name:      "missing recipient",
			input:     sendBody{Text: "hi"},
			wantField: "recipient_id",
			wantTag:   "required",
		},
		{
			name:      "bad recipient",
			input:     sendBody{RecipientID: "not a handle", Text: "hi"},
			wantField: "recipient_id",
			wantTag:   "handle",
		},
		{
			name:      "no text or attachment",
			input:     sendBody{RecipientID: "+15551234567"},
			wantField: "text",
			wantTag:   "required_without",
		},
		{
			name:      "relative attachment",
			input:     sendBody{RecipientID: "+15551234567", AttachmentRef: "photos/a.jpg"},
			wantField: "attachment_ref",
			wantTag:   "localpath",
		},
		{
			name:      "text too long",
			input:     sendBody{RecipientID: "+15551234567", Text: strings.Repeat("x", 101)},
			wantField: "text",
			wantTag:   "max",
		},
		{
			name:      "control characters in correlation id",
			input:     sendBody{RecipientID: "+15551234567", Text: "hi", CorrelationID: "a\nb"},
			wantField: "correlation_id",
			wantTag:   "printascii",
		},
		{
			name:      "json dash keeps struct name",
			input:     sendBody{RecipientID: "+15551234567", Text: "hi", Internal: -1},
			wantField: "Internal",
			wantTag:   "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected a validation error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors (%v), want 1", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("got %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestIsHandle(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"+15551234567", true},
		{"555.123.4567", true},
		{"(555) 123-4567", true},
		{"friend@example.com", true},
		{"  FRIEND@example.com ", true},
		{"", false},
		{"123", false},
		{"+1555abc4567", false},
		{"+123456789012345678901", false},
		{"@example.com", false},
		{"friend@", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsHandle(tt.in); got != tt.want {
				t.Errorf("IsHandle(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	verr := ValidateStruct(&sendBody{RecipientID: "nope", Text: "hi"})
	if verr == nil {
		t.Fatal("expected error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Message != "recipient_id must be a phone number or email address" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "recipient_id" || apiErr.Details["value"] != "nope" {
		t.Errorf("Details = %v", apiErr.Details)
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	verr := ValidateStruct(&sendBody{AttachmentRef: "relative"})
	if verr == nil {
		t.Fatal("expected error")
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("fields = %#v, want 2 entries", apiErr.Details["fields"])
	}
	for _, want := range []string{"recipient_id: recipient_id is required", "attachment_ref: attachment_ref must be an absolute file path"} {
		if !strings.Contains(apiErr.Message, want) {
			t.Errorf("Message %q missing %q", apiErr.Message, want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	type limits struct {
		Name  string `json:"name" validate:"min=3"`
		Count int    `json:"count" validate:"max=5"`
		Mode  string `json:"mode" validate:"oneof=fast slow"`
	}

	verr := ValidateStruct(&limits{Name: "ab", Count: 9, Mode: "warp"})
	if verr == nil {
		t.Fatal("expected errors")
	}

	want := map[string]string{
		"name":  "name must be at least 3 characters",
		"count": "count must be at most 5",
		"mode":  "mode must be one of: fast slow",
	}
	for _, e := range verr.Errors() {
		if e.Error() != want[e.Field()] {
			t.Errorf("%s: message %q, want %q", e.Field(), e.Error(), want[e.Field()])
		}
	}
}
