// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/courier/internal/models"
)

func TestPathResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	photo := filepath.Join(root, "ab", "photo.jpg")
	if err := os.MkdirAll(filepath.Dir(photo), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(photo, []byte("jpegdata"), 0o600); err != nil {
		t.Fatal(err)
	}
	stray := filepath.Join(outside, "stray.png")
	if err := os.WriteFile(stray, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	resolver, err := NewPathResolver([]string{root, "  "})
	if err != nil {
		t.Fatalf("NewPathResolver: %v", err)
	}

	tests := []struct {
		name    string
		ref     models.AttachmentRef
		wantErr error
		wantURL string
	}{
		{"inside root", models.AttachmentRef{ID: "1", Filename: photo}, nil, "file://" + photo},
		{"unclean path", models.AttachmentRef{ID: "2", Filename: filepath.Join(root, "ab", "..", "ab", "photo.jpg")}, nil, "file://" + photo},
		{"outside roots", models.AttachmentRef{ID: "3", Filename: stray}, ErrAttachmentOutsideRoots, ""},
		{"escape with dots", models.AttachmentRef{ID: "4", Filename: filepath.Join(root, "..", filepath.Base(outside), "stray.png")}, ErrAttachmentOutsideRoots, ""},
		{"missing file", models.AttachmentRef{ID: "5", Filename: filepath.Join(root, "gone.jpg")}, ErrAttachmentMissing, ""},
		{"directory", models.AttachmentRef{ID: "6", Filename: filepath.Join(root, "ab")}, ErrAttachmentMissing, ""},
		{"no filename", models.AttachmentRef{ID: "7"}, ErrAttachmentMissing, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if got.ResolvedURL != "" {
					t.Errorf("ResolvedURL = %q on failure", got.ResolvedURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got.ResolvedURL != tt.wantURL {
				t.Errorf("ResolvedURL = %q, want %q", got.ResolvedURL, tt.wantURL)
			}
			if got.TotalBytes != int64(len("jpegdata")) {
				t.Errorf("TotalBytes = %d, want file size", got.TotalBytes)
			}
		})
	}
}

func TestPathResolver_KeepsReportedSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.heic")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	resolver, err := NewPathResolver(nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := resolver.Resolve(context.Background(), models.AttachmentRef{ID: "1", Filename: path, TotalBytes: 4096})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.TotalBytes != 4096 {
		t.Errorf("TotalBytes = %d, want store-reported 4096", got.TotalBytes)
	}
}

func TestPathResolver_NoRootsAllowsAnyPath(t *testing.T) {
	resolver, err := NewPathResolver(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !resolver.allowed("/anywhere/at/all") {
		t.Error("resolver without roots rejected a path")
	}
}
