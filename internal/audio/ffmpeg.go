package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// DefaultInputFormat returns the ffmpeg capture format for the current OS.
func DefaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

// DefaultInputDevice returns the ffmpeg capture device for the current OS.
func DefaultInputDevice() string {
	if runtime.GOOS == "darwin" {
		return ":0"
	}
	return "default"
}

// FFmpegSource captures from a microphone by running ffmpeg and reading webm
// from its stdout.
type FFmpegSource struct {
	Path        string
	InputFormat string
	InputDevice string
}

// Open starts ffmpeg. Device and permission failures surface from the
// stream's Read once ffmpeg exits.
func (f FFmpegSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// stdin stays open: Stop writes ffmpeg's quit key to it.
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", f.InputFormat, "-i", f.InputDevice,
		"-vn", "-c:a", "libopus", "-f", "webm", "pipe:1",
	}

	cmd := exec.Command(f.Path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	s := &ffmpegStream{cmd: cmd, stdin: stdin, stdout: stdout}
	cmd.Stderr = &s.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", f.Path, err)
	}
	return s, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr bytes.Buffer

	waitOnce sync.Once
	waitErr  error
	stopOnce sync.Once
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := s.wait(); werr != nil {
			return n, fmt.Errorf("ffmpeg: %w: %s", werr, strings.TrimSpace(s.stderr.String()))
		}
	}
	return n, err
}

// Stop sends ffmpeg's quit key so it finalizes the webm container.
func (s *ffmpegStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if _, werr := io.WriteString(s.stdin, "q"); werr != nil && !errors.Is(werr, os.ErrClosed) {
			err = werr
		}
		s.stdin.Close()
	})
	return err
}

// Release kills ffmpeg if it is still running and reaps it.
func (s *ffmpegStream) Release() error {
	s.stdin.Close()
	if s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill ffmpeg: %w", err)
		}
	}
	s.wait()
	return nil
}

func (s *ffmpegStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// Format is an upload encoding.
type Format struct {
	Ext      string
	MIMEType string
	args     []string
}

var (
	FormatWAV = Format{Ext: "wav", MIMEType: "audio/wav", args: []string{"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", "-f", "wav"}}
	FormatMP3 = Format{Ext: "mp3", MIMEType: "audio/mp3", args: []string{"-c:a", "libmp3lame", "-q:a", "4", "-f", "mp3"}}
)

// FormatForMIME maps an upload content type to its Format.
func FormatForMIME(mimeType string) (Format, error) {
	switch mimeType {
	case FormatWAV.MIMEType:
		return FormatWAV, nil
	case FormatMP3.MIMEType:
		return FormatMP3, nil
	}
	return Format{}, fmt.Errorf("unsupported audio type %q", mimeType)
}

// Transcoder converts a capture into an upload format.
type Transcoder interface {
	Transcode(ctx context.Context, b Blob, to Format) (Blob, error)
}

// FFmpegTranscoder re-encodes through ffmpeg pipes.
type FFmpegTranscoder struct {
	Path string
}

func (t FFmpegTranscoder) Transcode(ctx context.Context, b Blob, to Format) (Blob, error) {
	if b.MIMEType == to.MIMEType {
		return b, nil
	}

	args := append([]string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0", "-vn"}, to.args...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Stdin = bytes.NewReader(b.Data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// a killed ffmpeg reports its signal; the caller needs the cancellation
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Blob{}, fmt.Errorf("transcode to %s: %w", to.Ext, ctxErr)
		}
		return Blob{}, fmt.Errorf("transcode to %s: %w: %s", to.Ext, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return Blob{}, fmt.Errorf("transcode to %s: empty output", to.Ext)
	}
	return Blob{Data: stdout.Bytes(), MIMEType: to.MIMEType}, nil
}

// RelabelTranscoder changes only the content type. The bytes stay webm, so the
// backend must sniff the container itself.
type RelabelTranscoder struct{}

func (RelabelTranscoder) Transcode(_ context.Context, b Blob, to Format) (Blob, error) {
	return Blob{Data: b.Data, MIMEType: to.MIMEType}, nil
}
