package server

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"arenarelay/config"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
}

// rolling 文件滚动策略：按大小切分，保留若干备份
func rolling(cfg config.LoggingConfig, filename string) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSizeMB, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   false,
	})
}

// NewLogger 同时输出到控制台与滚动文件（File 为空时只输出控制台）
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if cfg.File != "" {
		// 文件统一用 JSON，便于检索
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), rolling(cfg, cfg.File), level))
	}

	// 添加调用者信息（文件:行号）
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// NewAuditLogger 审计专用日志：只追加 JSON 行到 AuditFile；未配置时丢弃
func NewAuditLogger(cfg config.LoggingConfig) *zap.Logger {
	if cfg.AuditFile == "" {
		return zap.NewNop()
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), rolling(cfg, cfg.AuditFile), zapcore.InfoLevel)
	return zap.New(core).Named("audit")
}
