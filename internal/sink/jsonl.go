// Package sink writes fetched records to an output stream.
package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

// JSONLines writes one JSON object per record. It is safe for concurrent use.
type JSONLines struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

var _ crawler.RecordSink = (*JSONLines)(nil)

// NewJSONLines wraps w. If w is an io.Closer, Close closes it.
func NewJSONLines(w io.Writer) *JSONLines {
	s := &JSONLines{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Write encodes records in order and flushes, so a consumer tailing the
// output sees each batch as soon as it is produced.
func (s *JSONLines) Write(ctx context.Context, records []crawler.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		line, err := sonic.ConfigStd.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if _, err := s.w.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the underlying writer if it can be
// closed.
func (s *JSONLines) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
