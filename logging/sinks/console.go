// Package sinks provides the logging router's output backends.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"partyhall/server/logging"
)

// ConsoleSink writes one human-readable line per event.
type ConsoleSink struct {
	logger *log.Logger
}

// NewConsoleSink builds a console sink over the writer.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags)}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Printf("[%s] %s%s%s%s%s",
		event.Type,
		event.Severity,
		formatField("room", event.Room),
		formatTick(event.Tick),
		formatField("actor", event.Actor),
		formatPayload(event.Payload),
	)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func formatField(name, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf(" %s=%s", name, value)
}

func formatTick(tick uint64) string {
	if tick == 0 {
		return ""
	}
	return fmt.Sprintf(" tick=%d", tick)
}

func formatPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return " payload=<unencodable>"
	}
	var b strings.Builder
	b.WriteString(" payload=")
	b.Write(data)
	return b.String()
}
