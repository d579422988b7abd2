package log

import (
	"fmt"
	"time"
)

// Logger is the structured logger every component receives. Child loggers
// made with With carry per-case or per-connection fields.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that attaches fields to every record.
	With(fields ...Field) Logger
}

// Field is a key-value pair attached to a record.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Strings(key string, value []string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint32 is used for ticks and instruction words.
func Uint32(key string, value uint32) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Stringer defers formatting until the record is actually written, so
// stage names cost nothing at disabled levels.
func Stringer(key string, value fmt.Stringer) Field { return Field{Key: key, Value: value} }

// Err attaches err under the "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Any attaches an arbitrary value, rendered as JSON.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }
