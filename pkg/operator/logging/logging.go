/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the zap.Logger / logr.Logger pair the rest of the
// service logs through: JSON encoding, ISO8601 timestamps, sampling, and a
// NopLogger for tests.
package logging

import (
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NopLogger discards everything; used by tests that don't want log noise.
var NopLogger = zapr.NewLogger(zap.NewNop())

func zapConfig(level, outputPaths, errorOutputPaths string) zap.Config {
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		logLevel = lo.Must(zap.ParseAtomicLevel(level))
	}
	return zap.Config{
		Level:             logLevel,
		Development:       false,
		DisableCaller:     level != "debug",
		DisableStacktrace: true,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      strings.Split(outputPath(outputPaths), ","),
		ErrorOutputPaths: strings.Split(outputPath(errorOutputPaths), ","),
	}
}

func outputPath(p string) string {
	if p == "" {
		return "stdout"
	}
	return p
}

// NewLogger builds a *zap.Logger named component at the given level,
// JSON-encoded to stdout (or to outputPaths/errorOutputPaths when set).
func NewLogger(component, level, outputPaths, errorOutputPaths string) *zap.Logger {
	return lo.Must(zapConfig(level, outputPaths, errorOutputPaths).Build()).Named(component)
}

// NewLogr adapts a *zap.Logger to logr.Logger through go-logr/zapr, the
// interface the rest of the service (events, store, supervisor) actually
// takes as a dependency.
func NewLogr(z *zap.Logger) logr.Logger {
	return zapr.NewLogger(z)
}
