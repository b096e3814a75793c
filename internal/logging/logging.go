package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Info(string)
	Error(string)
}

func newJSONLogger(out io.Writer) *logrus.Logger {
	return &logrus.Logger{
		Out:       out,
		Formatter: new(logrus.JSONFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.DebugLevel,
	}
}

// BenchmarkLogger tags every message with the fuzzer and benchmark a build or
// fuzzing run is working on.
type BenchmarkLogger struct {
	Fuzzer    string
	Benchmark string
	logger    *logrus.Logger
}

func NewBenchmarkLogger(fuzzer, benchmark string) *BenchmarkLogger {
	return NewBenchmarkLoggerTo(newJSONLogger(os.Stderr), fuzzer, benchmark)
}

func NewBenchmarkLoggerTo(logger *logrus.Logger, fuzzer, benchmark string) *BenchmarkLogger {
	toReturn := BenchmarkLogger{
		Fuzzer:    fuzzer,
		Benchmark: benchmark,
		logger:    logger,
	}
	return &toReturn
}

func (l *BenchmarkLogger) wrapMessage(msg string) string {
	return fmt.Sprintf("[fuzzer:%s][benchmark:%s] %s", l.Fuzzer, l.Benchmark, msg)
}

func (l *BenchmarkLogger) fields(msg string) logrus.Fields {
	return logrus.Fields{
		"message":   l.wrapMessage(msg),
		"fuzzer":    l.Fuzzer,
		"benchmark": l.Benchmark,
	}
}

func (l *BenchmarkLogger) Info(msg string) {
	l.logger.WithFields(l.fields(msg)).Info()
}

func (l *BenchmarkLogger) Error(msg string) {
	l.logger.WithFields(l.fields(msg)).Error()
}

type FuzzerLogger struct {
	logger *logrus.Logger
	Fuzzer string
}

func NewFuzzerLogger(fuzzer string) *FuzzerLogger {
	toReturn := FuzzerLogger{
		logger: newJSONLogger(os.Stderr),
		Fuzzer: fuzzer,
	}
	return &toReturn
}

func (l *FuzzerLogger) wrapMessage(msg string) string {
	return fmt.Sprintf("[fuzzer:%s] %s", l.Fuzzer, msg)
}

func (l *FuzzerLogger) Info(msg string) {
	l.logger.WithFields(
		logrus.Fields{
			"message": l.wrapMessage(msg),
			"fuzzer":  l.Fuzzer,
		},
	).Info()
}

func (l *FuzzerLogger) Error(msg string) {
	l.logger.WithFields(
		logrus.Fields{
			"message": l.wrapMessage(msg),
			"fuzzer":  l.Fuzzer,
		},
	).Error()
}

type discard struct{}

func (discard) Info(string)  {}
func (discard) Error(string) {}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return discard{}
}
