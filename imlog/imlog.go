// Package imlog implements the process-wide async log pipeline: a
// level filter, a formatter that prefixes timestamp+level, a bounded
// blocking deque carrying formatted lines to a dedicated writer
// goroutine, and a day-change/50,000-line rotation policy. Grounded on
// original_source/code/log/log.{h,cpp} (async queue + rotation) and
// original_source/server/src/log/log.{h,cpp} (level filter API).
// Structured formatting/leveling is delegated to zap; the rotating file
// handle is a lumberjack.Logger, driven explicitly by Write rather than
// lumberjack's own size-based policy, since the rotation trigger here is
// day-change OR a 50,000-line threshold, not byte size.
package imlog

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sususu5/im-server/blockqueue"
)

// Level mirrors the four levels in the original log.h (DEBUG=0 through
// ERROR=3).
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const maxLines = 50000

// Logger is the async logger. The zero value is not usable; use New.
type Logger struct {
	zap   *zap.Logger
	file  *lumberjack.Logger
	queue *blockqueue.Queue

	levelMu sync.Mutex
	level   Level

	rotMu     sync.Mutex
	day       int
	lineCount int
	overflow  int
	pathDir   string
	suffix    string

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a Logger writing rotated files under dir with the
// given suffix (e.g. ".log"), buffering up to queueCapacity formatted
// lines for the async writer.
func New(dir, suffix string, level Level, queueCapacity int) *Logger {
	file := &lumberjack.Logger{Filename: filename(dir, suffix, time.Now(), 0), MaxBackups: 0, Compress: false}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(file),
		zapcore.DebugLevel,
	)

	l := &Logger{
		zap:     zap.New(core),
		file:    file,
		queue:   blockqueue.New(queueCapacity),
		level:   level,
		day:     dayNumber(time.Now()),
		pathDir: dir,
		suffix:  suffix,
		stop:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writerLoop()
	return l
}

// encodeQueuedLine/decodeQueuedLine pack a queuedLine into the plain
// string blockqueue.Queue carries, since the queue is shared with other
// would-be string producers and kept untyped.
func encodeQueuedLine(q queuedLine) string {
	return fmt.Sprintf("%d\x00%s", q.level, q.msg)
}

func decodeQueuedLine(s string) queuedLine {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			var lvl int
			fmt.Sscanf(s[:i], "%d", &lvl)
			return queuedLine{level: Level(lvl), msg: s[i+1:]}
		}
	}
	return queuedLine{level: Info, msg: s}
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func filename(dir, suffix string, t time.Time, overflow int) string {
	base := fmt.Sprintf("%s/%04d_%02d_%02d", dir, t.Year(), t.Month(), t.Day())
	if overflow > 0 {
		return fmt.Sprintf("%s-%d%s", base, overflow, suffix)
	}
	return base + suffix
}

// Zap exposes the underlying *zap.Logger so collaborators that already
// take a *zap.Logger (msgwriter's retry/drop logging) share this
// Logger's rotating file sink instead of opening a second one.
func (l *Logger) Zap() *zap.Logger { return l.zap }

// SetLevel adjusts the minimum level written from now on. Guarded by a
// mutex distinct from the rotation/format path, matching original
// log.cpp's separate level mutex.
func (l *Logger) SetLevel(level Level) {
	l.levelMu.Lock()
	l.level = level
	l.levelMu.Unlock()
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	l.levelMu.Lock()
	defer l.levelMu.Unlock()
	return l.level
}

// queuedLine pairs a level with its already-formatted message so the
// writer goroutine can pick the matching zap method.
type queuedLine struct {
	level Level
	msg   string
}

// Write formats a line and pushes it onto the async queue if the level
// passes the filter. The writer goroutine performs the actual zap call.
func (l *Logger) Write(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.queue.PushBack(encodeQueuedLine(queuedLine{level: level, msg: fmt.Sprintf(format, args...)}))
}

func (l *Logger) Debug(format string, args ...interface{}) { l.Write(Debug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.Write(Info, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.Write(Warn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.Write(Error, format, args...) }

func (l *Logger) writerLoop() {
	defer l.wg.Done()
	for {
		line, ok := l.queue.Pop(time.Second)
		if !ok {
			select {
			case <-l.stop:
				return
			default:
				continue
			}
		}
		l.writeLine(decodeQueuedLine(line))
	}
}

func (l *Logger) writeLine(q queuedLine) {
	l.rotate(time.Now())

	switch q.level {
	case Debug:
		l.zap.Debug(q.msg)
	case Info:
		l.zap.Info(q.msg)
	case Warn:
		l.zap.Warn(q.msg)
	default:
		l.zap.Error(q.msg)
	}
}

func (l *Logger) rotate(now time.Time) {
	l.rotMu.Lock()
	defer l.rotMu.Unlock()

	today := dayNumber(now)
	switch {
	case today != l.day:
		l.day = today
		l.lineCount = 0
		l.overflow = 0
		l.file.Filename = filename(l.pathDir, l.suffix, now, 0)
		_ = l.file.Rotate()
	case l.lineCount >= maxLines:
		l.lineCount = 0
		l.overflow++
		l.file.Filename = filename(l.pathDir, l.suffix, now, l.overflow)
		_ = l.file.Rotate()
	}
	l.lineCount++
}

// Flush drains and writes any buffered lines immediately.
func (l *Logger) Flush() {
	for _, line := range l.queue.Flush() {
		l.writeLine(decodeQueuedLine(line))
	}
	_ = l.zap.Sync()
}

// Close stops the writer goroutine after flushing remaining lines.
func (l *Logger) Close() error {
	l.queue.Close()
	close(l.stop)
	l.wg.Wait()
	l.Flush()
	return l.file.Close()
}
