// Package stub is a stand-in backend implementing both notebook endpoint
// shapes, for local development and integration tests.
package stub

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
)

// Error messages returned in the JSON error field.
const (
	ErrMethodNotAllowed = "Method not allowed"
	ErrInvalidMode      = "Invalid input type. Use 'pdf' or 'url'."
	ErrMissingPDF       = "missing pdf file"
	ErrMissingURL       = "missing url"
	ErrMissingAudio     = "missing audio file"
	ErrEmptyAudio       = "Empty transcription."
)

// Config configures the stub.
type Config struct {
	StaticDir string // served under /static when set
	Logger    *zap.Logger
}

// New returns the stub fiber app.
func New(cfg Config) *fiber.App {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             32 * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(requestLogger(log))

	if cfg.StaticDir != "" {
		app.Static("/static", cfg.StaticDir)
	}

	for _, n := range backend.Notebooks {
		app.All(n.Path(), runHandler(n))
	}
	return app
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.String("request_id", c.Get(backend.RequestIDHeader)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}
}

func runHandler(n backend.Notebook) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": ErrMethodNotAllowed})
		}
		if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			return c.JSON(backend.ActionResult{
				Success: true,
				Output:  fmt.Sprintf("notebook %d executed", n),
			})
		}

		form, err := c.MultipartForm()
		if err != nil {
			return badRequest(c, "parse form: "+err.Error())
		}
		return answer(c, n, form)
	}
}

func answer(c *fiber.Ctx, n backend.Notebook, form *multipart.Form) error {
	var source string
	switch backend.InputMode(formValue(form, "input_mode")) {
	case backend.InputPDF:
		files := form.File["pdf"]
		if len(files) == 0 {
			return badRequest(c, ErrMissingPDF)
		}
		source = filepath.Base(files[0].Filename)
	case backend.InputURL:
		source = strings.TrimSpace(formValue(form, "url"))
		if source == "" {
			return badRequest(c, ErrMissingURL)
		}
	default:
		return badRequest(c, ErrInvalidMode)
	}

	files := form.File["audio"]
	if len(files) == 0 {
		return badRequest(c, ErrMissingAudio)
	}
	audio := files[0]
	wantName, wantType := n.AudioUpload()
	if got := audio.Header.Get(fiber.HeaderContentType); got != wantType {
		return badRequest(c, fmt.Sprintf("audio must be %s, got %q", wantType, got))
	}
	if audio.Size == 0 {
		return c.JSON(backend.SessionResponse{Error: ErrEmptyAudio})
	}

	return c.JSON(backend.SessionResponse{
		TranscribedText: fmt.Sprintf("%d bytes of %s received", audio.Size, wantName),
		FinalResponse:   fmt.Sprintf("Notebook %d answered from %s.", n, source),
		Sources:         []string{source},
		AudioReplyPath:  fmt.Sprintf("/tmp/out/reply_%d.mp3", n),
	})
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}
