package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Logger struct {
	mu     sync.Mutex
	json   bool
	level  Level
	l      *log.Logger
	fields []Field
	now    func() time.Time
}

type Field struct {
	Key string
	Val any
}

// F is shorthand for building a Field.
func F(key string, val any) Field {
	return Field{Key: key, Val: val}
}

func New(jsonEnabled bool) *Logger {
	return NewWithWriter(os.Stdout, jsonEnabled)
}

func NewWithWriter(w io.Writer, jsonEnabled bool) *Logger {
	return &Logger{
		json:  jsonEnabled,
		level: LevelInfo,
		l:     log.New(w, "", 0),
		now:   time.Now,
	}
}

func (lg *Logger) SetJSON(enabled bool) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.json = enabled
}

func (lg *Logger) SetLevel(level Level) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.level = level
}

// With returns a child logger that prepends fields to every line.
func (lg *Logger) With(fields ...Field) *Logger {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	merged := make([]Field, 0, len(lg.fields)+len(fields))
	merged = append(merged, lg.fields...)
	merged = append(merged, fields...)
	return &Logger{
		json:   lg.json,
		level:  lg.level,
		l:      lg.l,
		fields: merged,
		now:    lg.now,
	}
}

func (lg *Logger) Debug(msg string, fields ...Field) {
	lg.print(LevelDebug, msg, fields...)
}

func (lg *Logger) Info(msg string, fields ...Field) {
	lg.print(LevelInfo, msg, fields...)
}

func (lg *Logger) Warn(msg string, fields ...Field) {
	lg.print(LevelWarn, msg, fields...)
}

func (lg *Logger) Error(msg string, fields ...Field) {
	lg.print(LevelError, msg, fields...)
}

func (lg *Logger) print(level Level, msg string, fields ...Field) {
	lg.mu.Lock()
	jsonEnabled, minLevel := lg.json, lg.level
	lg.mu.Unlock()
	if level < minLevel {
		return
	}
	all := append(append([]Field{}, lg.fields...), fields...)
	ts := lg.now().Format(time.RFC3339)
	if jsonEnabled {
		payload := map[string]any{
			"ts":    ts,
			"level": level.String(),
			"msg":   msg,
		}
		for _, f := range all {
			payload[f.Key] = jsonValue(f.Val)
		}
		b, _ := json.Marshal(payload)
		lg.l.Println(string(b))
		return
	}
	parts := []string{ts, strings.ToUpper(level.String()), msg}
	for _, f := range all {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Val))
	}
	lg.l.Println(strings.Join(parts, " "))
}

// errors marshal to {} otherwise
func jsonValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}
