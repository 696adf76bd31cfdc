// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package logutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
)

// restoreGlobalLogger puts back the logger and config a test replaced.
func restoreGlobalLogger(t *testing.T) {
	logger, conf := GetGlobalLogger(), getGlobalLogConfig()
	t.Cleanup(func() {
		replaceGlobalLogger(logger)
		_globalLogConfig.Store(conf)
	})
}

func TestLogConfigLevel(t *testing.T) {
	tests := []struct {
		level   string
		enabled []zapcore.Level
		muted   []zapcore.Level
	}{
		{"debug", []zapcore.Level{zapcore.DebugLevel, zapcore.ErrorLevel}, nil},
		{"info", []zapcore.Level{zapcore.InfoLevel}, []zapcore.Level{zapcore.DebugLevel}},
		{"WARN", []zapcore.Level{zapcore.WarnLevel}, []zapcore.Level{zapcore.InfoLevel}},
		{"error", []zapcore.Level{zapcore.ErrorLevel}, []zapcore.Level{zapcore.WarnLevel}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &LogConfig{Level: tt.level, Format: "json"}
			level := cfg.getLevel()
			for _, l := range tt.enabled {
				require.True(t, level.Enabled(l), l.String())
			}
			for _, l := range tt.muted {
				require.False(t, level.Enabled(l), l.String())
			}
		})
	}

	require.Panics(t, func() { (&LogConfig{Level: "verbose"}).getLevel() })
	require.Panics(t, func() { (&LogConfig{StacktraceLevel: "loud"}).getOptions() })
	require.Len(t, (&LogConfig{StacktraceLevel: "error"}).getOptions(), 2)
}

func TestLoggerEncoderFormats(t *testing.T) {
	entry := zapcore.Entry{Level: zapcore.WarnLevel, Message: "page dropped"}
	fields := []zapcore.Field{zap.Int("channels", 3)}

	buf, err := getLoggerEncoder("json").EncodeEntry(entry, fields)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"level":"WARN"`)
	require.Contains(t, buf.String(), `"channels":3`)

	// An unset format falls back to json.
	buf, err = getLoggerEncoder("").EncodeEntry(entry, fields)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(buf.String(), "{"))

	buf, err = getLoggerEncoder("console").EncodeEntry(entry, fields)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "WARN\tpage dropped")

	defer func() {
		err := recover()
		require.NotNil(t, err)
		require.True(t, moerr.IsMoErrCode(err.(error), moerr.ErrInternal))
	}()
	getLoggerEncoder("xml")
}

func TestWithFields(t *testing.T) {
	restoreGlobalLogger(t)
	core, logs := observer.New(zapcore.DebugLevel)
	replaceGlobalLogger(zap.New(core))

	ctx := WithFields(context.Background(), zap.String("encoding", "DICTIONARY"))
	require.Equal(t, ctx, WithFields(ctx))
	inner := WithFields(ctx, zap.Int("channel", 2))

	Debug(ctx, "outer")
	Warn(inner, "inner", zap.Int("positions", 10))
	Errorf(nil, "no context %d", 1)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	require.Equal(t, map[string]any{"encoding": "DICTIONARY"}, entries[0].ContextMap())
	require.Equal(t, map[string]any{
		"encoding":  "DICTIONARY",
		"channel":   int64(2),
		"positions": int64(10),
	}, entries[1].ContextMap())
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "no context 1", entries[2].Message)
	require.Empty(t, entries[2].Context)
}

func TestSetupMOLoggerFile(t *testing.T) {
	restoreGlobalLogger(t)
	filename := filepath.Join(t.TempDir(), "block.log")
	conf := &LogConfig{
		Level:      "warn",
		Format:     "json",
		Filename:   filename,
		MaxBackups: 1,
	}
	SetupMOLogger(conf)
	require.Equal(t, 512, conf.MaxSize)
	require.Equal(t, *conf, getGlobalLogConfig())

	ctx := WithFields(context.Background(), zap.String("serde", "lz4"))
	Info(ctx, "kept in memory")
	Warnf(ctx, "corrupted page %d", 7)
	require.NoError(t, GetGlobalLogger().Sync())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.NotContains(t, string(data), "kept in memory")
	require.Contains(t, string(data), `"msg":"corrupted page 7"`)
	require.Contains(t, string(data), `"serde":"lz4"`)
}

func TestSetupMOLoggerRejectsDirectory(t *testing.T) {
	restoreGlobalLogger(t)
	conf := &LogConfig{Level: "info", Format: "json", Filename: t.TempDir()}
	require.PanicsWithValue(t, "log file can't be a directory", func() {
		SetupMOLogger(conf)
	})
}
