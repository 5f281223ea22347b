// Package nlog is a small leveled logger in the style of aistore's cmn/nlog
// and ClusterCockpit's pkg/log: a handful of package-level functions writing
// level-tagged lines through one shared io.Writer, with no external logging dependency because
// none of the surveyed repos reach for one (aistore and ClusterCockpit both
// roll their own leveled wrapper over the standard log package).
package nlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	level  atomic.Int32
	stdlog = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

func init() { level.Store(int32(LevelInfo)) }

// SetLevel controls the minimum level that is actually written.
func SetLevel(l Level) { level.Store(int32(l)) }

// SetOutput redirects all levels to w (tests redirect this to capture logs).
func SetOutput(w io.Writer) { stdlog.SetOutput(w) }

func enabled(l Level) bool { return int32(l) >= level.Load() }

func Debugf(format string, args ...any) { logf(LevelDebug, "DEBUG", format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, "INFO", format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, "WARN", format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, "ERROR", format, args...) }

func Infoln(args ...any) {
	if enabled(LevelInfo) {
		stdlog.Output(2, "INFO "+fmt.Sprintln(args...))
	}
}

func logf(l Level, tag, format string, args ...any) {
	if !enabled(l) {
		return
	}
	stdlog.Output(3, tag+" "+fmt.Sprintf(format, args...))
}
