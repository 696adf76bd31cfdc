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


package logutil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/matrixorigin/moblock/pkg/config"
	"github.com/matrixorigin/moblock/pkg/logutil"
)

func TestSetupMOLoggerFromConfig(t *testing.T) {
	previous := logutil.GetGlobalLogger()
	defer func() {
		logutil.SetupMOLogger(&logutil.LogConfig{Level: "info", Format: "console"})
		require.NotSame(t, previous, logutil.GetGlobalLogger())
	}()

	cfg, err := config.Parse(`
[log]
level = "error"
format = "json"
stacktrace-level = "panic"
`)
	require.NoError(t, err)
	logutil.SetupMOLogger(&cfg.Log)
	core := logutil.GetGlobalLogger().Core()
	require.True(t, core.Enabled(zapcore.ErrorLevel))
	require.False(t, core.Enabled(zapcore.WarnLevel))
	logutil.Error(context.Background(), "parsed log section")

	// Missing keys take the console defaults.
	cfg, err = config.Parse(`[serde]
compression = "zstd"
`)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	logutil.SetupMOLogger(&cfg.Log)
	require.True(t, logutil.GetGlobalLogger().Core().Enabled(zapcore.InfoLevel))
	require.False(t, logutil.GetGlobalLogger().Core().Enabled(zapcore.DebugLevel))
}
