// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/store"
)

// AttachmentResolver turns a store attachment into a consumer-facing reference.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref models.AttachmentRef) (models.AttachmentRef, error)
}

var (
	// ErrAttachmentMissing is returned when the attachment file is not on disk.
	ErrAttachmentMissing = errors.New("attachment file not found")

	// ErrAttachmentOutsideRoots is returned for paths outside the allowed roots.
	ErrAttachmentOutsideRoots = errors.New("attachment path outside allowed roots")
)

// PathResolver resolves attachments to file:// URLs after checking the file
// exists under one of the allowed roots.
type PathResolver struct {
	roots []string
	stat  func(string) (os.FileInfo, error)
}

// NewPathResolver creates a resolver. Roots may start with "~". An empty
// root list allows any path.
func NewPathResolver(roots []string) (*PathResolver, error) {
	expanded := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		path, err := store.ExpandHome(root)
		if err != nil {
			return nil, fmt.Errorf("attachment root %q: %w", root, err)
		}
		expanded = append(expanded, filepath.Clean(path))
	}
	return &PathResolver{roots: expanded, stat: os.Stat}, nil
}

// Resolve implements AttachmentResolver.
func (r *PathResolver) Resolve(_ context.Context, ref models.AttachmentRef) (models.AttachmentRef, error) {
	if ref.Filename == "" {
		return ref, fmt.Errorf("%w: attachment %s has no filename", ErrAttachmentMissing, ref.ID)
	}

	path, err := store.ExpandHome(ref.Filename)
	if err != nil {
		return ref, fmt.Errorf("expand attachment path: %w", err)
	}
	path = filepath.Clean(path)

	if !r.allowed(path) {
		return ref, fmt.Errorf("%w: %s", ErrAttachmentOutsideRoots, path)
	}

	info, err := r.stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ref, fmt.Errorf("%w: %s", ErrAttachmentMissing, path)
		}
		return ref, fmt.Errorf("stat attachment: %w", err)
	}
	if info != nil && info.IsDir() {
		return ref, fmt.Errorf("%w: %s is a directory", ErrAttachmentMissing, path)
	}

	resolved := ref
	resolved.ResolvedURL = (&url.URL{Scheme: "file", Path: path}).String()
	if resolved.TotalBytes == 0 && info != nil {
		resolved.TotalBytes = info.Size()
	}
	return resolved, nil
}

func (r *PathResolver) allowed(path string) bool {
	if len(r.roots) == 0 {
		return true
	}
	for _, root := range r.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
