package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const defaultSlowThreshold = 200 * time.Millisecond

// ZapGormLogger adapts zap to gorm.io/gorm/logger.Interface so query logs end
// up in the same structured stream as everything else.
type ZapGormLogger struct {
	zap           *zap.Logger
	slowThreshold time.Duration
	logLevel      logger.LogLevel
	showSQL       bool
}

func NewZapGormLogger(z *zap.Logger, logLevel logger.LogLevel, showSQL bool) *ZapGormLogger {
	return &ZapGormLogger{
		zap:           z,
		logLevel:      logLevel,
		showSQL:       showSQL,
		slowThreshold: defaultSlowThreshold,
	}
}

func (l *ZapGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *ZapGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zap.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zap.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zap.Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs one executed statement. ErrRecordNotFound is not an error here:
// the repository layer maps it to a nil result.
func (l *ZapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		l.zap.Error("gorm.query", append(fields, zap.Error(err))...)
	case l.slowThreshold != 0 && elapsed > l.slowThreshold:
		l.zap.Warn("gorm.slow_query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
	case l.logLevel == logger.Info && l.showSQL:
		l.zap.Info("gorm.query", fields...)
	}
}
