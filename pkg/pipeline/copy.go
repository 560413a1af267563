// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📋 copyPassThrough replicates every non-document file into the output
// tree, preserving relative paths, bytes, permissions and mtime.
// Per-file failures are recorded, never fatal.
func (p *Processor) copyPassThrough(ctx context.Context, inputRoot, outputRoot string, files []string) CopySummary {
	logger := zerolog.Ctx(ctx)

	summary := CopySummary{}
	for _, src := range files {
		rel, err := filepath.Rel(inputRoot, src)
		if err != nil {
			summary.Failed = append(summary.Failed, FileError{Path: src, Err: err.Error()})
			continue
		}
		dst := filepath.Join(outputRoot, rel)

		if err := copyFile(src, dst); err != nil {
			logger.Warn().Str("file", src).Err(err).Msg("copying pass-through file")
			summary.Failed = append(summary.Failed, FileError{Path: src, Err: err.Error()})
			continue
		}

		logger.Debug().Str("file", src).Str("dest", dst).Msg("copied pass-through file")
		summary.Copied = append(summary.Copied, src)
	}

	summary.CopiedCount = len(summary.Copied)
	summary.FailedCount = len(summary.Failed)
	return summary
}

// 📄 copyFile copies bytes and metadata of a single file
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("checking source: %w", err)
	}

	// MkdirAll is a no-op when the directory exists, so concurrent
	// creation of shared parents is safe
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Errorf("copying bytes: %w", err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing destination: %w", err)
	}

	// Preserve the source timestamps, same as a metadata-aware copy
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return errors.Errorf("preserving timestamps: %w", err)
	}

	return nil
}
