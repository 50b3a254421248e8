package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/app"
	"github.com/AdityaGoyal-512/notebook-runner/internal/audio"
	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/config"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/logger"
	"github.com/AdityaGoyal-512/notebook-runner/internal/session"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "notebook-session",
	Short:         "Answer a notebook by voice against a PDF or URL",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: notebook-runner.yaml in . or the user config dir)")
	rootCmd.AddCommand(newAskCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "notebook-session: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.Config
	log    *zap.Logger
	client *backend.Client
	close  func()
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level})
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(cfg.Session.BaseURL, backend.WithLogger(log))
	if err != nil {
		closeLog()
		return nil, err
	}
	return &env{cfg: cfg, log: log, client: client, close: closeLog}, nil
}

func transcoder(cfg config.AudioConfig) audio.Transcoder {
	if cfg.Transcode {
		return audio.FFmpegTranscoder{Path: cfg.FFmpegPath}
	}
	return audio.RelabelTranscoder{}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdout.Fd()) {
		return errors.New("stdout is not a terminal; use `notebook-session ask` instead")
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	journal, err := history.OpenMemory()
	if err != nil {
		return err
	}
	defer journal.Close()

	rec := audio.NewRecorder(audio.FFmpegSource{
		Path:        e.cfg.Audio.FFmpegPath,
		InputFormat: e.cfg.Audio.InputFormat,
		InputDevice: e.cfg.Audio.InputDevice,
	}, e.log)
	defer rec.Close()

	e.log.Info("session starting",
		zap.String("base_url", e.client.BaseURL()),
		zap.String("input_format", e.cfg.Audio.InputFormat),
		zap.Bool("transcode", e.cfg.Audio.Transcode))

	m := app.NewSession(app.SessionDeps{
		Deps: app.Deps{
			Client:  e.client,
			Journal: journal,
			Logger:  e.log,
			Timeout: e.cfg.RequestTimeout,
		},
		Recorder:   rec,
		Transcoder: transcoder(e.cfg.Audio),
		Player:     audio.NewPlayer(e.cfg.Audio.Player),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func newAskCmd() *cobra.Command {
	var (
		notebook  int
		pdfPath   string
		url       string
		audioPath string
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Submit a recorded webm answer without the UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := backend.Notebook(notebook)
			if err := n.Validate(); err != nil {
				return err
			}

			data, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			if len(data) == 0 {
				return fmt.Errorf("%s: %w", audioPath, audio.ErrEmptyRecording)
			}
			answer := audio.Blob{Data: data, MIMEType: audio.MIMEWebM}

			// Same gate as the TUI: blank urls and unreadable pdfs never leave.
			st := session.New()
			st.SelectNotebook(n)
			if pdfPath != "" {
				st.PDFPath = pdfPath
			} else {
				st.SetMode(backend.InputURL)
				st.URL = url
			}
			st.FinishRecording(answer)
			if err := st.Validate(); err != nil {
				return err
			}
			sub := st.Submission()

			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			if e.cfg.RequestTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
				defer cancel()
			}

			resp, replyURL, err := app.SubmitSession(ctx, e.client, transcoder(e.cfg.Audio), sub, answer)
			if err != nil {
				e.log.Warn("session submit failed", zap.Int("notebook", notebook), zap.Error(err))
				return err
			}
			printResponse(cmd.OutOrStdout(), resp, replyURL)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&notebook, "notebook", 0, "notebook to ask: 1 or 2")
	flags.StringVar(&pdfPath, "pdf", "", "PDF document to send as input")
	flags.StringVar(&url, "url", "", "URL to send as input")
	flags.StringVar(&audioPath, "audio", "", "webm recording of the answer")
	_ = cmd.MarkFlagRequired("notebook")
	_ = cmd.MarkFlagRequired("audio")
	cmd.MarkFlagsMutuallyExclusive("pdf", "url")
	cmd.MarkFlagsOneRequired("pdf", "url")

	return cmd
}

func printResponse(w io.Writer, resp backend.SessionResponse, replyURL string) {
	fmt.Fprintf(w, "Transcript: %s\n", resp.TranscribedText)
	fmt.Fprintf(w, "Response:   %s\n", resp.FinalResponse)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "Sources (%d):\n", len(resp.Sources))
		for _, s := range resp.Sources {
			fmt.Fprintf(w, "  • %s\n", s)
		}
	}
	if replyURL != "" {
		fmt.Fprintf(w, "Audio reply: %s\n", replyURL)
	}
}
