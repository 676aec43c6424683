package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

// flushInterval bounds how long a formatted record may sit in a sink
// buffer before it reaches disk or stdout.
const flushInterval = 250 * time.Millisecond

// recordQueueLen sizes the record queue. The bot logs one receipt and
// one summary line per update, so a small queue absorbs bursts; when it
// fills, Write blocks instead of dropping records.
const recordQueueLen = 128

// asyncWriter decouples record formatting from sink I/O. A single
// goroutine fans queued records out to buffered sinks and flushes the
// buffers on an interval rather than per record.
type asyncWriter struct {
	records chan []byte
	flushes chan chan error
	done    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	sinks []*bufio.Writer
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, out := range writers {
		if out == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(out, bufSize))
	}
	w := &asyncWriter{
		records: make(chan []byte, recordQueueLen),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
		sinks:   sinks,
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case rec, ok := <-w.records:
			if !ok {
				w.keepErr(w.flushSinks())
				close(w.done)
				return
			}
			if len(rec) > 0 {
				w.keepErr(w.fanOut(rec))
			}
		case <-ticker.C:
			w.keepErr(w.flushSinks())
		case ack := <-w.flushes:
			ack <- w.flushSinks()
		}
	}
}

// Write enqueues one formatted record. It blocks when the queue is
// full rather than dropping the record.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.lastErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.records <- append([]byte(nil), p...)
	return nil
}

// Flush forces buffered content out to every sink.
func (w *asyncWriter) Flush() error {
	if err := w.lastErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.lastErr()
	}
}

// Close drains the queue, flushes the sinks and reports the first
// write error seen over the writer's lifetime.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.records)
	})
	<-w.done
	return w.lastErr()
}

func (w *asyncWriter) fanOut(rec []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) lastErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) keepErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
