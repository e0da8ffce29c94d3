package logging

import (
	"go.uber.org/zap"
)

type impl struct {
	name  string
	level zap.AtomicLevel
	base  *zap.Logger
}

func (imp *impl) sugar() *zap.SugaredLogger {
	if imp.name == "" {
		return imp.base.Sugar()
	}
	return imp.base.Named(imp.name).Sugar()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = imp.name + "." + subname
	}
	return &impl{name: newName, level: imp.level, base: imp.base}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return LevelFromZap(imp.level.Level())
}

func (imp *impl) Enabled(level Level) bool {
	return imp.level.Enabled(level.AsZap())
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.sugar()
}

func (imp *impl) Sync() error {
	return imp.base.Sync()
}

func (imp *impl) Debug(args ...interface{}) {
	imp.sugar().Debug(args...)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.sugar().Debugf(template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugar().Debugw(msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) {
	imp.sugar().Info(args...)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.sugar().Infof(template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugar().Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.sugar().Warn(args...)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.sugar().Warnf(template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugar().Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) {
	imp.sugar().Error(args...)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.sugar().Errorf(template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugar().Errorw(msg, keysAndValues...)
}
