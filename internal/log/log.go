package log

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/merge-o-matic/mom/internal/charm/styles"
	"github.com/merge-o-matic/mom/internal/deb822"
	"github.com/merge-o-matic/mom/internal/env"
	"github.com/merge-o-matic/mom/internal/utils"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelErr     Level = "error"
	LevelSuccess Level = "success"
)

type contextKey string

const loggerContextKey contextKey = "cli-logger-context"

var Levels = []string{string(LevelInfo), string(LevelWarn), string(LevelErr)}

type Logger struct {
	level           Level
	associatedFile  string
	fields          []zapcore.Field
	interactiveOnly bool
	formatter       func(l Logger, level Level, msg string, err error) string
	writer          io.Writer
}

// With returns a new context with the given logger added to the context.
func With(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

// From returns the logger associated with the given context.
func From(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerContextKey).(Logger); ok {
		return l
	}
	return New()
}

func New() Logger {
	formatter := BasicFormatter

	if env.IsGithubAction() {
		formatter = GithubFormatter
	}

	return Logger{
		level:     LevelInfo,
		formatter: formatter,
		writer:    os.Stderr,
	}
}

/**
 * Builders
 */

func (l Logger) WithLevel(level Level) Logger {
	l2 := l.Copy()
	l2.level = level
	return l2
}

func (l Logger) WithAssociatedFile(associatedFile string) Logger {
	// Inside a GitHub workspace the annotation must be relative to the checkout
	if ws := os.Getenv("GITHUB_WORKSPACE"); ws != "" {
		associatedFile = strings.TrimPrefix(associatedFile, strings.TrimSuffix(ws, "/")+"/")
	}

	l2 := l.Copy()
	l2.associatedFile = associatedFile
	return l2
}

func (l Logger) WithInteractiveOnly() Logger {
	l2 := l.Copy()
	l2.interactiveOnly = true
	return l2
}

func (l Logger) With(fields ...zapcore.Field) Logger {
	l2 := l.Copy()
	l2.fields = append(append([]zapcore.Field(nil), l.fields...), fields...)
	return l2
}

func (l Logger) WithFormatter(formatter func(l Logger, level Level, msg string, err error) string) Logger {
	l2 := l.Copy()
	l2.formatter = formatter
	return l2
}

func (l Logger) WithWriter(w io.Writer) Logger {
	l2 := l.Copy()
	l2.writer = w
	return l2
}

func (l Logger) Copy() Logger {
	return Logger{
		level:           l.level,
		associatedFile:  l.associatedFile,
		fields:          l.fields,
		interactiveOnly: l.interactiveOnly,
		formatter:       l.formatter,
		writer:          l.writer,
	}
}

/**
 * Logging methods
 */

func (l Logger) Info(msg string, fields ...zapcore.Field) {
	if l.level != LevelInfo {
		return
	}

	fields = append(append([]zapcore.Field(nil), l.fields...), fields...)

	msg, err, fields := getMessage(msg, fields)

	msg = l.format(LevelInfo, msg, err) + fieldsToJSON(fields)
	l.Println(msg)
}

func (l Logger) Infof(format string, a ...any) {
	l.Info(fmt.Sprintf(format, a...))
}

func (l Logger) Warn(msg string, fields ...zapcore.Field) {
	if l.level != LevelInfo && l.level != LevelWarn {
		return
	}

	fields = append(append([]zapcore.Field(nil), l.fields...), fields...)

	msg, err, fields := getMessage(msg, fields)

	msg = l.format(LevelWarn, msg, err) + fieldsToJSON(fields)
	l.Println(msg)
}

func (l Logger) Error(msg string, fields ...zapcore.Field) {
	fields = append(append([]zapcore.Field(nil), l.fields...), fields...)

	msg, err, fields := getMessage(msg, fields)

	msg = l.format(LevelErr, msg, err) + fieldsToJSON(fields)
	l.Println(msg)
}

func (l Logger) Success(msg string, fields ...zapcore.Field) {
	fields = append(append([]zapcore.Field(nil), l.fields...), fields...)

	msg, err, fields := getMessage(msg, fields)

	msg = l.format(LevelSuccess, msg, err) + fieldsToJSON(fields)
	l.Println(msg)
}

func (l Logger) Successf(format string, a ...any) {
	l.Success(fmt.Sprintf(format, a...))
}

func (l Logger) PrintfStyled(style lipgloss.Style, format string, a ...any) {
	l.PrintlnUnstyled(style.Render(fmt.Sprintf(format, a...)))
}

func (l Logger) Println(s string) {
	l.Print(s + "\n")
}

func (l Logger) Print(s string) {
	if l.interactiveOnly && !utils.IsInteractive() {
		return
	}
	fmt.Fprint(l.writer, s)
}

func (l Logger) PrintlnUnstyled(a any) {
	if l.interactiveOnly && !utils.IsInteractive() {
		return
	}
	fmt.Fprintln(l.writer, a)
}

func (l Logger) format(level Level, msg string, err error) string {
	return l.formatter(l, level, msg, err)
}

/**
 * Formatters
 */

func BasicFormatter(l Logger, level Level, msg string, err error) string {
	switch level {
	case LevelInfo:
		return styles.Info.Render(msg)
	case LevelWarn:
		return styles.Warning.Render(msg)
	case LevelErr:
		return styles.Error.Render(msg)
	case LevelSuccess:
		return styles.Success.Render(msg)
	}

	return ""
}

func PrefixedFormatter(l Logger, level Level, msg string, err error) string {
	prefix := ""

	switch level {
	case LevelInfo, LevelSuccess:
		prefix = styles.Info.Render("INFO\t")
	case LevelWarn:
		prefix = styles.Warning.Render("WARN\t")
	case LevelErr:
		prefix = styles.Error.Render("ERROR\t")
	}

	return prefix + msg
}

func GithubFormatter(l Logger, level Level, msg string, err error) string {
	switch level {
	case LevelWarn:
		attributes := getGithubAnnotationAttributes(l.associatedFile, err)
		return fmt.Sprintf("::warning%s::%s", attributes, msg)
	case LevelErr:
		attributes := getGithubAnnotationAttributes(l.associatedFile, err)
		return fmt.Sprintf("::error%s::%s", attributes, msg)
	}

	return msg
}

/**
 * Utilities
 */

func getGithubAnnotationAttributes(associatedFile string, err error) string {
	if err == nil || associatedFile == "" {
		return ""
	}

	var pErr *deb822.ParseError
	if errors.As(err, &pErr) {
		return fmt.Sprintf(" file=%s,line=%d,title=Malformed Document", filepath.Clean(associatedFile), pErr.Line)
	}

	return fmt.Sprintf(" file=%s", filepath.Clean(associatedFile))
}

func getMessage(msg string, fields []zapcore.Field) (string, error, []zapcore.Field) {
	fields, err := findError(fields)
	if err != nil {
		if msg == "" {
			msg = err.Error()
		} else {
			fields = append(fields, zap.Error(err))
		}
	}

	return msg, err, fields
}

func findError(fields []zapcore.Field) ([]zapcore.Field, error) {
	var err error
	filteredFields := []zapcore.Field{}
	for _, field := range fields {
		if field.Type == zapcore.ErrorType {
			if foundErr, ok := field.Interface.(error); ok {
				err = foundErr
			} else {
				filteredFields = append(filteredFields, field)
			}
		} else {
			filteredFields = append(filteredFields, field)
		}
	}

	return filteredFields, err
}

func fieldsToJSON(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}

	data, err := json.Marshal(enc.Fields)
	if err != nil {
		return ""
	}

	return "\t" + string(data)
}
