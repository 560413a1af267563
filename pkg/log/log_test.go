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

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_job_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.LogJobOperation(context.Background(), JobOperation{
					Path:          "docs/guide.md",
					Status:        "transformed",
					WorkerID:      3,
					IsTransformed: true,
				})
			},
			wantLogs: []string{
				"✓ docs/guide.md",
				"transformed",
			},
		},
		{
			name: "log_failed_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.LogJobOperation(context.Background(), JobOperation{
					Path:     "docs/broken.md",
					Status:   "failed",
					IsFailed: true,
				})
			},
			wantLogs: []string{
				"✗ docs/broken.md",
			},
		},
		{
			name: "log_run_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.StartRunOperation(context.Background(), RunOperation{
					Input:   "/tmp/in",
					Output:  "/tmp/out",
					Model:   "gpt-4o",
					Workers: 8,
				})
			},
			wantLogs: []string{
				"[transforming /tmp/in]",
				"◆ gpt-4o • 8 workers",
			},
		},
		{
			name: "log_progress",
			op: func(t *testing.T, logger *Logger) {
				logger.Progress("[worker 1] [1/3] processing: a.md")
			},
			wantLogs: []string{
				"» [worker 1] [1/3] processing: a.md",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Successf("done in %d", 2)
			},
			wantLogs: []string{
				"ℹ️  info test",
				"✅ done in 2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(&buf, zerolog.Disabled)

			tt.op(t, logger)

			output := buf.String()
			for _, want := range tt.wantLogs {
				assert.True(t, strings.Contains(output, want),
					"output %q should contain %q", output, want)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.Disabled)

	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestEndRunWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.Disabled)

	// Must not panic
	logger.EndRunOperation(context.Background())
	assert.Empty(t, buf.String())
}
