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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogMaxSize = 300 // 日志文件默认最大大小，单位 MB。
	defaultLogFormat  = "text"
	defaultLogLevel   = "info"
)

// FileLogConfig 用于序列化文件日志相关配置（json/yaml）。
type FileLogConfig struct {
	// RootPath 为日志文件根目录。
	RootPath string `json:"rootpath" mapstructure:"rootpath"`
	// Filename 为日志文件名，留空表示关闭文件日志。
	Filename string `json:"filename" mapstructure:"filename"`
	// MaxSize 表示单个日志文件的最大大小，单位 MB。
	MaxSize int `json:"max-size" mapstructure:"max-size"`
	// MaxDays 表示日志文件最大保留天数，默认为不删除。
	MaxDays int `json:"max-days" mapstructure:"max-days"`
	// MaxBackups 表示最多保留多少个历史日志文件。
	MaxBackups int `json:"max-backups" mapstructure:"max-backups"`
}

// Config 用于序列化日志相关配置（json/yaml）。
type Config struct {
	// Level 为日志级别。
	Level string `json:"level" mapstructure:"level"`
	// Format 为日志格式，可选 json 或 text。
	Format string `json:"format" mapstructure:"format"`
	// DisableTimestamp 表示是否禁用日志中的自动时间戳。
	DisableTimestamp bool `json:"disable-timestamp" mapstructure:"disable-timestamp"`
	// Stdout 表示是否输出到标准输出。
	Stdout bool `json:"stdout" mapstructure:"stdout"`
	// File 为文件日志配置。
	File FileLogConfig `json:"file" mapstructure:"file"`
	// DisableCaller 表示是否关闭调用方文件名和行号标注，默认会标注。
	DisableCaller bool `json:"disable-caller" mapstructure:"disable-caller"`
	// DisableStacktrace 表示是否完全关闭自动堆栈采集。
	DisableStacktrace bool `json:"disable-stacktrace" mapstructure:"disable-stacktrace"`
}

// ZapProperties 记录一次初始化得到的 zap 组件，便于调用方动态调整级别。
type ZapProperties struct {
	Core   zapcore.Core
	Syncer zapcore.WriteSyncer
	Level  zap.AtomicLevel
}

func (cfg *Config) buildEncoder() zapcore.Encoder {
	cc := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.DisableTimestamp {
		cc.TimeKey = zapcore.OmitKey
	}
	if cfg.Format == "json" {
		return zapcore.NewJSONEncoder(cc)
	}
	return zapcore.NewConsoleEncoder(cc)
}

func (cfg *Config) buildOptions(errOutput zapcore.WriteSyncer) []zap.Option {
	opts := []zap.Option{zap.ErrorOutput(errOutput)}
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return opts
}

func (cfg *Config) withDefaults() *Config {
	out := *cfg
	if out.Level == "" {
		out.Level = defaultLogLevel
	}
	if out.Format == "" {
		out.Format = defaultLogFormat
	}
	if out.File.MaxSize == 0 {
		out.File.MaxSize = defaultLogMaxSize
	}
	return &out
}
