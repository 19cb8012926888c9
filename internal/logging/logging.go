package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// New builds a logger writing to out. format is text, json or console.
func New(out io.Writer, format, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts))
	case "console":
		return slog.New(NewConsoleHandler(out, lvl))
	default:
		return slog.New(slog.NewTextHandler(out, opts))
	}
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConsoleHandler prints one colored line per record for local development.
type ConsoleHandler struct {
	mu    *sync.Mutex
	l     *log.Logger
	level slog.Level
	attrs []slog.Attr
	group string
}

func NewConsoleHandler(out io.Writer, level slog.Level) *ConsoleHandler {
	return &ConsoleHandler{
		mu:    &sync.Mutex{},
		l:     log.New(out, "", 0),
		level: level,
	}
}

func (c *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.HiBlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	var b strings.Builder
	write := func(a slog.Attr) {
		key := a.Key
		if c.group != "" {
			key = c.group + "." + key
		}
		b.WriteString(color.GreenString(key))
		b.WriteString("=")
		b.WriteString(fmt.Sprint(a.Value.Resolve().Any()))
		b.WriteString(" ")
	}
	for _, a := range c.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.l.Println(
		r.Time.Format("15:04:05.000"),
		level,
		r.Message,
		strings.TrimSpace(b.String()),
	)
	return nil
}

func (c *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.attrs = append(append([]slog.Attr{}, c.attrs...), attrs...)
	return &next
}

func (c *ConsoleHandler) WithGroup(name string) slog.Handler {
	next := *c
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func (c *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= c.level
}
