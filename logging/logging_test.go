// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).Named("replica")

	log.Debug("loaded %d bytes", 12)
	log.Info("merged %s", "peer")
	log.Warn("slow")
	log.Error("failed: %v", "boom")

	entries := logs.AllUntimed()
	require.Len(entries, 4)
	require.Equal("loaded 12 bytes", entries[0].Message)
	require.Equal(zapcore.DebugLevel, entries[0].Level)
	require.Equal("merged peer", entries[1].Message)
	require.Equal(zapcore.WarnLevel, entries[2].Level)
	require.Equal("failed: boom", entries[3].Message)
	require.Equal("replica", entries[3].LoggerName)
}

func TestNoLog(t *testing.T) {
	require := require.New(t)

	NoLogger.Info("ignored %d", 1)
	require.PanicsWithValue("fatal 1", func() {
		NoLogger.Fatal("fatal %d", 1)
	})
}
