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

// Package inventory scans an input tree and partitions its files into
// documents to transform and everything else to copy through unchanged.
package inventory

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🚨 ErrInputNotFound indicates the input root does not exist
var ErrInputNotFound = errors.New("input folder not found")

// 🔧 Options contains configuration for a scan
type Options struct {
	// Extension marks files as transformable (e.g. ".md")
	Extension string
	// IgnorePatterns are doublestar globs matched against the
	// slash-separated path relative to the root; matches are skipped
	// entirely (neither transformed nor copied)
	IgnorePatterns []string
}

// 📦 Inventory is the result of scanning an input tree
type Inventory struct {
	// Root is the scanned input root
	Root string
	// Transformable are document paths matched by the extension, in
	// walk order
	Transformable []string
	// PassThrough are all other regular files, in walk order
	PassThrough []string
}

// 🔍 Scan walks the input root and partitions every regular file.
// Each file is visited exactly once; directories themselves are not
// recorded.
func Scan(ctx context.Context, root string, opts Options) (*Inventory, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%w: %s", ErrInputNotFound, root)
		}
		return nil, errors.Errorf("checking input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("input path %s is not a directory", root)
	}

	if opts.Extension == "" {
		opts.Extension = ".md"
	}

	inv := &Inventory{Root: root}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Errorf("walking %s: %w", path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", path, err)
		}

		if ignored(logger, opts.IgnorePatterns, filepath.ToSlash(rel)) {
			return nil
		}

		if strings.HasSuffix(d.Name(), opts.Extension) {
			inv.Transformable = append(inv.Transformable, path)
		} else {
			inv.PassThrough = append(inv.PassThrough, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("root", root).
		Int("transformable", len(inv.Transformable)).
		Int("pass_through", len(inv.PassThrough)).
		Msg("scanned input folder")

	return inv, nil
}

// 🔍 ignored checks a relative path against the ignore patterns
func ignored(logger *zerolog.Logger, patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, relPath)
		if err != nil {
			logger.Debug().Str("pattern", pattern).Str("path", relPath).Err(err).Msg("error matching pattern")
			continue
		}
		if matched {
			logger.Debug().Str("file", relPath).Str("pattern", pattern).Msg("file ignored by pattern")
			return true
		}
	}
	return false
}
