/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 *
 * godwoken-sub004 is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * godwoken-sub004 is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Lesser General Public License for more details.
 */

// Package log wraps logrus with the leveled, package-scoped call shape the
// rest of this node expects.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Level uint32

const (
	FatalLog Level = iota
	ErrorLog
	WarnLog
	InfoLog
	DebugLog
	TraceLog
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stdout)
	std.SetLevel(logrus.InfoLevel)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// InitLog configures the global logger's level and output targets. Passing
// no targets keeps stdout; additional writers (e.g. a rotating file) are
// fanned out via io.MultiWriter.
func InitLog(level Level, targets ...io.Writer) {
	std.SetLevel(toLogrusLevel(level))
	if len(targets) == 0 {
		return
	}
	all := append([]io.Writer{os.Stdout}, targets...)
	std.SetOutput(io.MultiWriter(all...))
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case FatalLog:
		return logrus.FatalLevel
	case ErrorLog:
		return logrus.ErrorLevel
	case WarnLog:
		return logrus.WarnLevel
	case InfoLog:
		return logrus.InfoLevel
	case DebugLog:
		return logrus.DebugLevel
	case TraceLog:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

func WithField(key string, value interface{}) *logrus.Entry { return std.WithField(key, value) }
func WithFields(fields logrus.Fields) *logrus.Entry          { return std.WithFields(fields) }

func Trace(args ...interface{}) { std.Trace(args...) }
func Debug(args ...interface{}) { std.Debug(args...) }
func Info(args ...interface{}) { std.Info(args...) }
func Warn(args ...interface{}) { std.Warn(args...) }
func Error(args ...interface{}) { std.Error(args...) }
func Fatal(args ...interface{}) { std.Fatal(args...) }

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { std.Fatalf(format, args...) }
