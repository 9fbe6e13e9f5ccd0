package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"partyhall/server/logging"
)

// JSONSink appends one JSON object per line to a file, buffered so tick-rate
// event bursts do not turn into per-event syscalls.
type JSONSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewJSONSink opens (or creates) the target file in append mode.
func NewJSONSink(path string) (*JSONSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONSink{
		file:   file,
		writer: bufio.NewWriterSize(file, 32*1024),
	}, nil
}

func (s *JSONSink) Write(event logging.Event) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	return s.writer.WriteByte('\n')
}

func (s *JSONSink) Close(context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
