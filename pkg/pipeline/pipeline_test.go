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

package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/docmill/pkg/inventory"
	"github.com/walteh/docmill/pkg/llm"
	"github.com/walteh/docmill/pkg/pipeline"
	"github.com/walteh/docmill/pkg/text"
	"gitlab.com/tozd/go/errors"
)

// 🧪 fakeTransformer is a controllable stand-in for the LLM client
type fakeTransformer struct {
	// fn produces the reply for a given document text
	fn func(text string) (string, error)
	// workDelay simulates network latency per call
	workDelay time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32

	mu          sync.Mutex
	maxInFlight int32
}

func (f *fakeTransformer) Transform(ctx context.Context, text string, opts ...llm.CallOption) (string, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	if current > f.maxInFlight {
		f.maxInFlight = current
	}
	f.mu.Unlock()

	if f.workDelay > 0 {
		time.Sleep(f.workDelay)
	}

	if f.fn != nil {
		return f.fn(text)
	}
	return "EDITED: " + text, nil
}

func (f *fakeTransformer) observedMax() int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// 🧪 writeTree writes files (keyed by relative path) under a temp root
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

func newProcessor(t *testing.T, svc pipeline.Transformer, workers int) *pipeline.Processor {
	t.Helper()
	p, err := pipeline.New(pipeline.Options{
		Service: svc,
		Workers: workers,
	})
	require.NoError(t, err)
	return p
}

// 🧪 TestRunScenario covers the canonical 3-documents-plus-1-asset run
func TestRunScenario(t *testing.T) {
	input := writeTree(t, map[string]string{
		"a.md":     "alpha",
		"b.md":     "beta",
		"c.md":     "gamma",
		"logo.png": "\x89PNG fake bytes",
	})
	output := filepath.Join(t.TempDir(), "out")

	svc := &fakeTransformer{}
	p := newProcessor(t, svc, 2)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalJobs)
	assert.Equal(t, 3, summary.SuccessfulCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.Equal(t, 1, summary.Copies.CopiedCount)
	assert.Equal(t, 0, summary.Copies.FailedCount)
	assert.Equal(t, output, summary.OutputRoot)
	assert.NotEmpty(t, summary.RunID)

	for name, want := range map[string]string{
		"a.md": "EDITED: alpha",
		"b.md": "EDITED: beta",
		"c.md": "EDITED: gamma",
	} {
		data, err := os.ReadFile(filepath.Join(output, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}

	// Pass-through copy is byte identical
	data, err := os.ReadFile(filepath.Join(output, "logo.png"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake bytes", string(data))
}

// 🧪 TestRunMirrorsNestedPaths checks relative-path mirroring
func TestRunMirrorsNestedPaths(t *testing.T) {
	input := writeTree(t, map[string]string{
		"top.md":                 "one",
		"docs/nested.md":         "two",
		"docs/deep/further.md":   "three",
		"docs/deep/diagram.svg":  "<svg/>",
		"assets/img/picture.jpg": "jpeg",
	})
	output := filepath.Join(t.TempDir(), "out")

	p := newProcessor(t, &fakeTransformer{}, 4)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.SuccessfulCount)
	assert.Equal(t, 2, summary.Copies.CopiedCount)

	for _, rel := range []string{
		"top.md",
		"docs/nested.md",
		"docs/deep/further.md",
		"docs/deep/diagram.svg",
		"assets/img/picture.jpg",
	} {
		_, err := os.Stat(filepath.Join(output, filepath.FromSlash(rel)))
		assert.NoError(t, err, "expected %s in output tree", rel)
	}
}

// 🧪 TestRunFailureIsolation injects one failing document among many
func TestRunFailureIsolation(t *testing.T) {
	files := map[string]string{
		"ok1.md": "fine",
		"ok2.md": "fine",
		"ok3.md": "fine",
		"ok4.md": "fine",
		"bad.md": "poison",
	}
	input := writeTree(t, files)
	output := filepath.Join(t.TempDir(), "out")

	svc := &fakeTransformer{
		fn: func(text string) (string, error) {
			if text == "poison" {
				return "", errors.New("model exploded")
			}
			return "EDITED: " + text, nil
		},
	}
	p := newProcessor(t, svc, 3)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err, "a single job failure must not fail the run")

	assert.Equal(t, 5, summary.TotalJobs)
	assert.Equal(t, 4, summary.SuccessfulCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, summary.TotalJobs, summary.SuccessfulCount+summary.FailedCount)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, filepath.Join(input, "bad.md"), summary.Failed[0].Path)
	assert.Contains(t, summary.Failed[0].Err, "model exploded")

	// The failed document produced no output; the others all did
	_, err = os.Stat(filepath.Join(output, "bad.md"))
	assert.True(t, os.IsNotExist(err))
	for _, name := range []string{"ok1.md", "ok2.md", "ok3.md", "ok4.md"} {
		data, err := os.ReadFile(filepath.Join(output, name))
		require.NoError(t, err)
		assert.Equal(t, "EDITED: fine", string(data))
	}
}

// 🧪 TestRunMissingInput checks the fatal precondition path
func TestRunMissingInput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out")

	p := newProcessor(t, &fakeTransformer{}, 2)

	_, err := p.Run(testContext(t), filepath.Join(t.TempDir(), "does-not-exist"), output)
	require.Error(t, err)
	assert.True(t, errors.Is(err, inventory.ErrInputNotFound))

	// No output tree may be created when the precondition fails
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

// 🧪 TestRunEmptyInput checks the zero-document path
func TestRunEmptyInput(t *testing.T) {
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	svc := &fakeTransformer{}
	p := newProcessor(t, svc, 2)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalJobs)
	assert.Equal(t, int32(0), svc.calls.Load())

	// Output root still exists for consistency with non-empty runs
	info, err := os.Stat(output)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// 🧪 TestRunConcurrencyBound verifies the pool size caps in-flight calls
func TestRunConcurrencyBound(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		files[name+".md"] = name
	}
	input := writeTree(t, files)
	output := filepath.Join(t.TempDir(), "out")

	svc := &fakeTransformer{workDelay: 20 * time.Millisecond}
	p := newProcessor(t, svc, 3)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.SuccessfulCount)
	assert.Equal(t, int32(10), svc.calls.Load())
	assert.LessOrEqual(t, svc.observedMax(), int32(3),
		"at most 3 transforms may be in flight with a 3-worker pool")
}

// 🧪 TestRunWithPacingDelay exercises the consumption throttle
func TestRunWithPacingDelay(t *testing.T) {
	input := writeTree(t, map[string]string{
		"a.md": "one",
		"b.md": "two",
		"c.md": "three",
	})
	output := filepath.Join(t.TempDir(), "out")

	p, err := pipeline.New(pipeline.Options{
		Service: &fakeTransformer{},
		Workers: 3,
		Delay:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.SuccessfulCount)
	// Two inter-result pauses for three results
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

// 🧪 TestRunIdempotentPaths re-runs the pipeline over the same input
func TestRunIdempotentPaths(t *testing.T) {
	input := writeTree(t, map[string]string{
		"a.md":     "alpha",
		"logo.png": "png",
	})
	output := filepath.Join(t.TempDir(), "out")

	p := newProcessor(t, &fakeTransformer{}, 2)

	first, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)
	second, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.ElementsMatch(t, first.Successful, second.Successful)
	assert.ElementsMatch(t, first.Copies.Copied, second.Copies.Copied)
	assert.Equal(t, first.TotalJobs, second.TotalJobs)
}

// 🧪 TestRunIgnorePatterns skips ignored files entirely
func TestRunIgnorePatterns(t *testing.T) {
	input := writeTree(t, map[string]string{
		"real.md":           "keep",
		"drafts/draft-1.md": "skip",
		"scratch.tmp":       "skip",
		"notes.txt":         "copy",
	})
	output := filepath.Join(t.TempDir(), "out")

	p, err := pipeline.New(pipeline.Options{
		Service:        &fakeTransformer{},
		Workers:        2,
		IgnorePatterns: []string{"drafts/**", "*.tmp"},
	})
	require.NoError(t, err)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalJobs)
	assert.Equal(t, 1, summary.Copies.CopiedCount)

	_, statErr := os.Stat(filepath.Join(output, "drafts"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(output, "scratch.tmp"))
	assert.True(t, os.IsNotExist(statErr))
}

// 🧪 TestRunAppliesReplacements scrubs model artifacts from output
func TestRunAppliesReplacements(t *testing.T) {
	input := writeTree(t, map[string]string{"a.md": "body"})
	output := filepath.Join(t.TempDir(), "out")

	svc := &fakeTransformer{
		fn: func(content string) (string, error) {
			return "```markdown\nEDITED: " + content + "\n```", nil
		},
	}
	p, err := pipeline.New(pipeline.Options{
		Service: svc,
		Workers: 1,
		Replacements: []text.Rule{
			{From: "```markdown\n", To: ""},
			{From: "\n```", To: ""},
		},
	})
	require.NoError(t, err)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessfulCount)

	data, err := os.ReadFile(filepath.Join(output, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "EDITED: body", string(data))
}

// 🧪 TestNewValidation checks constructor guards
func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    pipeline.Options
		wantErr string
	}{
		{
			name:    "missing_service",
			opts:    pipeline.Options{},
			wantErr: "transform service is required",
		},
		{
			name:    "negative_workers",
			opts:    pipeline.Options{Service: &fakeTransformer{}, Workers: -1},
			wantErr: "workers must not be negative",
		},
		{
			name:    "negative_delay",
			opts:    pipeline.Options{Service: &fakeTransformer{}, Delay: -time.Second},
			wantErr: "delay must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.New(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// 🧪 TestRunPassThroughOnly runs with no transformable documents
func TestRunPassThroughOnly(t *testing.T) {
	input := writeTree(t, map[string]string{
		"one.png": "1",
		"two.css": "2",
	})
	output := filepath.Join(t.TempDir(), "out")

	svc := &fakeTransformer{}
	p := newProcessor(t, svc, 2)

	summary, err := p.Run(testContext(t), input, output)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalJobs)
	assert.Equal(t, 2, summary.Copies.CopiedCount)
	assert.Equal(t, int32(0), svc.calls.Load())

	var sawOne, sawTwo bool
	for _, copied := range summary.Copies.Copied {
		if strings.HasSuffix(copied, "one.png") {
			sawOne = true
		}
		if strings.HasSuffix(copied, "two.css") {
			sawTwo = true
		}
	}
	assert.True(t, sawOne && sawTwo)
}
