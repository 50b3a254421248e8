// Package audio captures answer recordings from a microphone, converts them
// for upload and plays back audio replies.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MIMEWebM is the content type of every capture.
const MIMEWebM = "audio/webm"

var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrEmptyRecording   = errors.New("no audio captured")
)

// Blob is an in-memory audio file.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Stream is an open capture device.
type Stream interface {
	io.Reader
	// Stop asks the device to finish. Buffered audio is still returned by
	// Read, followed by io.EOF.
	Stop() error
	// Release frees the device. It is safe to call more than once and after
	// Stop.
	Release() error
}

// Source opens capture devices.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Recorder hands out at most one RecordingSession at a time.
type Recorder struct {
	source Source
	log    *zap.Logger

	mu     sync.Mutex
	active *RecordingSession
}

// NewRecorder returns a recorder reading from src.
func NewRecorder(src Source, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{source: src, log: log}
}

// Start opens the device and begins buffering audio.
func (r *Recorder) Start(ctx context.Context) (*RecordingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrAlreadyRecording
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		r.log.Warn("open capture device failed", zap.Error(err))
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	s := &RecordingSession{
		rec:     r,
		stream:  stream,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	r.active = s
	go s.pump()

	r.log.Info("recording started")
	return s, nil
}

// Active reports whether a session is open.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Close aborts any open session. Call it on teardown.
func (r *Recorder) Close() error {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()

	if s != nil {
		s.Abort()
	}
	return nil
}

func (r *Recorder) detach(s *RecordingSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}

// RecordingSession accumulates audio chunks from one open stream.
type RecordingSession struct {
	rec     *Recorder
	stream  Stream
	started time.Time

	mu      sync.Mutex
	chunks  [][]byte
	size    int
	readErr error

	done     chan struct{}
	released sync.Once
}

func (s *RecordingSession) pump() {
	defer close(s.done)

	buf := make([]byte, 32*1024)
	for {
		n, err := s.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.mu.Lock()
			s.chunks = append(s.chunks, chunk)
			s.size += n
			s.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
			}
			return
		}
	}
}

// Size returns the number of bytes captured so far.
func (s *RecordingSession) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Elapsed returns the time since the session started.
func (s *RecordingSession) Elapsed() time.Duration {
	return time.Since(s.started)
}

// Stop finishes the recording and returns the captured audio as one webm
// blob. The device is released whatever the outcome. If ctx ends before the
// device drains, the capture is discarded.
func (s *RecordingSession) Stop(ctx context.Context) (Blob, error) {
	defer s.release()

	if err := s.stream.Stop(); err != nil {
		return Blob{}, fmt.Errorf("stop microphone: %w", err)
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return Blob{}, fmt.Errorf("wait for microphone: %w", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return Blob{}, fmt.Errorf("read microphone: %w", s.readErr)
	}
	if s.size == 0 {
		return Blob{}, ErrEmptyRecording
	}

	data := bytes.Join(s.chunks, nil)
	s.chunks = nil
	s.rec.log.Info("recording stopped",
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", s.Elapsed()))
	return Blob{Data: data, MIMEType: MIMEWebM}, nil
}

// Abort discards the recording and releases the device.
func (s *RecordingSession) Abort() {
	s.release()
	<-s.done
	s.rec.log.Info("recording aborted")
}

func (s *RecordingSession) release() {
	s.released.Do(func() {
		if err := s.stream.Release(); err != nil {
			s.rec.log.Warn("release capture device failed", zap.Error(err))
		}
		s.rec.detach(s)
	})
}
