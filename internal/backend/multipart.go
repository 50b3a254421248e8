package backend

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// Submission is everything a guided session sends in one request.
type Submission struct {
	Notebook Notebook
	Mode     InputMode
	// PDFPath is read when Mode is InputPDF.
	PDFPath string
	// URL is sent when Mode is InputURL.
	URL string
	// Audio is the answer recording, already encoded for the notebook.
	Audio []byte
}

// WriteForm encodes sub as multipart/form-data into w and returns the content
// type, boundary included.
func WriteForm(w io.Writer, sub Submission) (string, error) {
	mw := multipart.NewWriter(w)

	if err := mw.WriteField("input_mode", string(sub.Mode)); err != nil {
		return "", fmt.Errorf("write input_mode: %w", err)
	}

	switch sub.Mode {
	case InputPDF:
		if err := writePDF(mw, sub.PDFPath); err != nil {
			return "", err
		}
	case InputURL:
		if err := mw.WriteField("url", sub.URL); err != nil {
			return "", fmt.Errorf("write url: %w", err)
		}
	default:
		return "", fmt.Errorf("unknown input mode %q", sub.Mode)
	}

	if len(sub.Audio) == 0 {
		return "", errors.New("audio is empty")
	}
	filename, contentType := sub.Notebook.AudioUpload()
	part, err := mw.CreatePart(fileHeader("audio", filename, contentType))
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(sub.Audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}
	return mw.FormDataContentType(), nil
}

func writePDF(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	part, err := mw.CreatePart(fileHeader("pdf", filepath.Base(path), "application/pdf"))
	if err != nil {
		return fmt.Errorf("create pdf part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("write pdf part: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(field, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
