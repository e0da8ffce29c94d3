package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestSubloggerNaming(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("follower").Sublogger("pid")
	sub.Infow("tick", "error", 1.5)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "follower.pid")
	test.That(t, entries[0].Message, test.ShouldEqual, "tick")
	test.That(t, entries[0].ContextMap()["error"], test.ShouldEqual, 1.5)
}

func TestLevelFiltering(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
	test.That(t, logger.Enabled(INFO), test.ShouldBeFalse)
	test.That(t, logger.Enabled(ERROR), test.ShouldBeTrue)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warnf("kept %d", 1)
	logger.Errorw("kept", "n", 2)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].Level, test.ShouldEqual, zapcore.WarnLevel)
	test.That(t, entries[0].Message, test.ShouldEqual, "kept 1")
	test.That(t, entries[1].Level, test.ShouldEqual, zapcore.ErrorLevel)
}

func TestLevelFromString(t *testing.T) {
	for input, expected := range map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
	} {
		level, err := LevelFromString(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}

	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, level.UnmarshalJSON([]byte(`"warn"`)), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := ERROR.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}

func TestLoggerConfig(t *testing.T) {
	config := NewLoggerConfig(WARN, JSONFormat)
	test.That(t, config.Encoding, test.ShouldEqual, "json")
	test.That(t, config.Level.Level(), test.ShouldEqual, zapcore.WarnLevel)
	test.That(t, config.Sampling, test.ShouldBeNil)
	test.That(t, config.DisableStacktrace, test.ShouldBeTrue)

	config = NewLoggerConfig(DEBUG, ConsoleFormat)
	test.That(t, config.Encoding, test.ShouldEqual, "console")
	test.That(t, config.Level.Level(), test.ShouldEqual, zapcore.DebugLevel)

	logger := NewLoggerWithFormat("sim", INFO, JSONFormat)
	test.That(t, logger.Enabled(INFO), test.ShouldBeTrue)
	test.That(t, logger.Enabled(DEBUG), test.ShouldBeFalse)

	format, err := FormatFromString("JSON")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, format, test.ShouldEqual, JSONFormat)
	_, err = FormatFromString("xml")
	test.That(t, err, test.ShouldNotBeNil)
}
