package main

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/zboralski/jbridge/internal/trace"
)

type traceCollector struct {
	mu     sync.Mutex
	events []*trace.Event
}

func (tc *traceCollector) Add(e *trace.Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.events = append(tc.events, e)
}

// count returns how many collected events carry tag.
func (tc *traceCollector) count(tag trace.Tag) int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	n := 0
	for _, e := range tc.events {
		if e.Tags.Has(tag) {
			n++
		}
	}
	return n
}

func (tc *traceCollector) Len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.events)
}

// outputWriter serializes trace lines and script output onto one buffered
// stream, flushed periodically and on Close.
type outputWriter struct {
	ch     chan string
	done   chan struct{}
	writer *bufio.Writer
	part   []byte // unterminated script output
}

func newOutputWriter(w io.Writer) *outputWriter {
	o := &outputWriter{
		ch:     make(chan string, 2048),
		done:   make(chan struct{}),
		writer: bufio.NewWriterSize(w, 64*1024),
	}
	go o.run()
	return o
}

func (w *outputWriter) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-w.ch:
			if !ok {
				w.writer.Flush()
				close(w.done)
				return
			}
			w.writer.WriteString(line)
			w.writer.WriteByte('\n')
		case <-ticker.C:
			w.writer.Flush()
		}
	}
}

// Line queues one line.
func (w *outputWriter) Line(line string) {
	w.ch <- line
}

// Write implements io.Writer for script output, queueing complete lines.
func (w *outputWriter) Write(p []byte) (int, error) {
	w.part = append(w.part, p...)
	for {
		i := bytes.IndexByte(w.part, '\n')
		if i < 0 {
			break
		}
		w.Line(string(w.part[:i]))
		w.part = w.part[i+1:]
	}
	return len(p), nil
}

func (w *outputWriter) Close() {
	if len(w.part) > 0 {
		w.Line(string(w.part))
		w.part = nil
	}
	close(w.ch)
	<-w.done
}
