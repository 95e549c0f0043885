// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import "go.uber.org/zap"

var _ Logger = (*ZapAdapter)(nil)

// ZapAdapter adapts a zap.Logger to Logger.
type ZapAdapter struct {
	logger *zap.SugaredLogger
}

// NewZapAdapter returns a Logger writing to [logger]. Caller information
// points at the code calling the adapter.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{
		logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// Named returns an adapter whose entries carry [name] as a logger name
// segment.
func (z *ZapAdapter) Named(name string) *ZapAdapter {
	return &ZapAdapter{logger: z.logger.Named(name)}
}

func (z *ZapAdapter) Debug(format string, args ...interface{}) {
	z.logger.Debugf(format, args...)
}

func (z *ZapAdapter) Info(format string, args ...interface{}) {
	z.logger.Infof(format, args...)
}

func (z *ZapAdapter) Warn(format string, args ...interface{}) {
	z.logger.Warnf(format, args...)
}

func (z *ZapAdapter) Error(format string, args ...interface{}) {
	z.logger.Errorf(format, args...)
}

func (z *ZapAdapter) Fatal(format string, args ...interface{}) {
	z.logger.Fatalf(format, args...)
}
