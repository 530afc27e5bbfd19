// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var _globalL, _globalP, _globalS, _globalR atomic.Value

var _namedRateLimiters sync.Map

// RateLimiter is the minimal interface used by rated logging helpers.
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

// nopRateLimiter never drops logs.
type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(delta float64) bool { return true }

func init() {
	l, p := newStdLogger()
	_globalL.Store(l)
	_globalP.Store(p)
	_globalS.Store(l.Sugar())

	// Rate limiting is disabled until explicitly configured.
	_globalR.Store(nopRateLimiter{})
}

// newStdLogger builds a console logger writing to stderr, used before
// InitLogger is called.
func newStdLogger() (*zap.Logger, *ZapProperties) {
	cfg := (&Config{Stdout: false, Level: "info"}).withDefaults()
	out, _, _ := zap.Open("stderr")
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core := zapcore.NewCore(cfg.buildEncoder(), out, lvl)
	l := zap.New(core, cfg.buildOptions(out)...)
	return l, &ZapProperties{Core: core, Syncer: out, Level: lvl}
}

// InitLogger initializes a zap logger from config and replaces the
// package-level globals.
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	cfg = cfg.withDefaults()

	var outputs []zapcore.WriteSyncer
	if len(cfg.File.Filename) > 0 {
		lg, err := initFileLog(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(lg))
	}
	if cfg.Stdout {
		stdOut, _, err := zap.Open("stdout")
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, stdOut)
	}
	if len(outputs) == 0 {
		stdErr, _, err := zap.Open("stderr")
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, stdErr)
	}
	syncer := zap.CombineWriteSyncers(outputs...)

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(cfg.buildEncoder(), syncer, level)
	opts = append(cfg.buildOptions(syncer), opts...)
	lg := zap.New(core, opts...)
	r := &ZapProperties{Core: core, Syncer: syncer, Level: level}
	ReplaceGlobals(lg, r)
	return lg, r, nil
}

// initFileLog initializes file based logging options.
func initFileLog(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	if st, err := os.Stat(cfg.Filename); err == nil {
		if st.IsDir() {
			return nil, errors.New("can't use directory as log file name")
		}
	}

	filename := cfg.Filename
	if cfg.RootPath != "" {
		filename = filepath.Join(cfg.RootPath, filename)
	}

	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

// ReplaceGlobals replaces the global Logger and Sugared Logger.
// It's safe for concurrent use.
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalS.Store(logger.Sugar())
	_globalP.Store(props)
}

// SetupRateLimiter configures the process-wide limiter used by the
// Rated* helpers.
func SetupRateLimiter(creditPerSecond, maxBalance float64) {
	_globalR.Store(utils.NewRateLimiter(creditPerSecond, maxBalance))
}

// L returns the global Logger, which can be reconfigured with
// ReplaceGlobals. It's safe for concurrent use.
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// S returns the global SugaredLogger, which can be reconfigured with
// ReplaceGlobals. It's safe for concurrent use.
func S() *zap.SugaredLogger {
	return _globalS.Load().(*zap.SugaredLogger)
}

// R returns the process-wide rate limiter for rated logging.
func R() RateLimiter {
	return _globalR.Load().(RateLimiter)
}

// Prop returns the properties of the most recently installed logger.
func Prop() *ZapProperties {
	return _globalP.Load().(*ZapProperties)
}

// With creates a child MLogger carrying the given fields.
func With(fields ...zap.Field) *MLogger {
	return &MLogger{Logger: L().With(fields...)}
}
