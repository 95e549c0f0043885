// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import "fmt"

// Logger is the printf-style logger used by the storage backends and replicas.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Fatal(format string, args ...interface{})
}

// NoLog discards everything except Fatal, which panics.
type NoLog struct{}

func (NoLog) Debug(string, ...interface{}) {}
func (NoLog) Info(string, ...interface{})  {}
func (NoLog) Warn(string, ...interface{})  {}
func (NoLog) Error(string, ...interface{}) {}
func (NoLog) Fatal(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// NoLogger is a default no-op logger instance
var NoLogger Logger = NoLog{}
