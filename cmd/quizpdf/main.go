// quizpdf exports a quiz submission history as a single-page PDF.
//
// Usage:
//
//	quizpdf export [flags]
//	quizpdf file [flags] <page.html>
//	quizpdf info <file.pdf>
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	onepage "github.com/porticus-lab/onepage-pdf"
	"github.com/porticus-lab/onepage-pdf/internal/config"
	"github.com/porticus-lab/onepage-pdf/internal/logger"
	"github.com/porticus-lab/onepage-pdf/internal/pdf"
	"github.com/porticus-lab/onepage-pdf/internal/quiz"
)

var errUsage = errors.New("usage")

var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return errUsage
	}

	var err error
	switch args[0] {
	case "export":
		err = runExport(ctx, args[1:])
	case "file":
		err = runFile(ctx, args[1:])
	case "info":
		return runInfo(args[1:], stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage(os.Stderr)
		return errUsage
	}
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `quizpdf - export a quiz submission history as one PDF page

Usage:
  quizpdf export [flags]
  quizpdf file [flags] <page.html>
  quizpdf info <file.pdf>

Commands:
  export    Log in, open the submission history and export it
  file      Export a saved HTML page
  info      Display document version and page dimensions

Settings come from flags, QUIZPDF_* environment variables and an optional
config file (-j). The password is read from the config file or from
QUIZPDF_PASSWORD; when stdin is a terminal, a missing username or password
is prompted for.

Examples:
  quizpdf export -j quiz.json
  quizpdf export --course 12345 --quiz 678 --user 42 --username e0123456
  quizpdf file --no-sandbox history.html
  quizpdf info 678-000042.pdf

Run "quizpdf export --help" for the full flag list.
`)
}

// setup parses flags and builds the configuration and logger shared by the
// rendering commands.
func setup(name string, args []string) (*config.Config, *pflag.FlagSet, *zap.Logger, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if name == "file" {
		fs.Bool("raw", false, "skip page cleanup")
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}

	path, _ := fs.GetString("config")
	cfg, err := config.Load(path, fs)
	if err != nil {
		return nil, nil, nil, err
	}

	lc := logger.DefaultConfig()
	lc.Level, lc.Format, lc.Output = cfg.Log.Level, cfg.Log.Format, cfg.Log.Output
	log, err := logger.New(lc)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, fs, log, nil
}

func browserOptions(cfg *config.Config, log *zap.Logger) []onepage.Option {
	opts := []onepage.Option{
		onepage.WithTimeout(cfg.Render.Timeout),
		onepage.WithHeadless(cfg.Browser.Headless),
		onepage.WithBrowserLogger(log.Named("browser")),
		onepage.WithPageConfig(onepage.PageConfig{
			Margin:          onepage.UniformMargin(cfg.Render.Margin),
			Scale:           cfg.Render.Scale,
			PrintBackground: cfg.Render.PrintBackground,
		}),
	}
	if cfg.Browser.ChromePath != "" {
		opts = append(opts, onepage.WithChromePath(cfg.Browser.ChromePath))
	}
	if cfg.Browser.RemoteURL != "" {
		opts = append(opts, onepage.WithRemoteURL(cfg.Browser.RemoteURL))
	}
	if cfg.Browser.NoSandbox {
		opts = append(opts, onepage.WithNoSandbox())
	}
	if cfg.Browser.AutoDownload {
		opts = append(opts, onepage.WithAutoDownload())
	}
	return opts
}

func searchOptions(cfg *config.Config, log *zap.Logger) []onepage.SearchOption {
	return []onepage.SearchOption{
		onepage.WithSlack(cfg.Render.Slack),
		onepage.WithMaxProbes(cfg.Render.MaxProbes),
		onepage.WithMaxHeight(cfg.Render.MaxHeight),
		onepage.WithLogger(log.Named("search")),
	}
}

// render opens a session, lets prepare load the document, and writes the
// single-page PDF to out.
func render(ctx context.Context, cfg *config.Config, log *zap.Logger, out string, prepare func(*onepage.Session) error) error {
	b, err := onepage.NewBrowser(browserOptions(cfg, log)...)
	if err != nil {
		return err
	}
	defer b.Close()

	s, err := b.NewSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := prepare(s); err != nil {
		return err
	}

	vp := onepage.Viewport{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height, ScaleFactor: cfg.Viewport.Scale}
	if err := s.SetViewport(ctx, vp); err != nil {
		return err
	}

	log.Info("exporting PDF",
		zap.Float64("width", cfg.Render.Width),
		zap.Int("initial_height", cfg.Render.InitialHeight))
	res, err := s.FindSinglePageHeight(ctx, cfg.Render.Width, cfg.Render.InitialHeight, searchOptions(cfg, log)...)
	if err != nil {
		return fmt.Errorf("exporting (%s): %w", onepage.KindOf(err), err)
	}

	if err := res.WriteToFile(out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	abs, _ := filepath.Abs(out)
	log.Info("exported",
		zap.String("file", abs),
		zap.Int("height", res.Height()),
		zap.Int("renders", res.Renders()),
		zap.Int("bytes", res.Len()))
	return nil
}

// runExport implements the "export" command.
func runExport(ctx context.Context, args []string) error {
	cfg, _, log, err := setup("export", args)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.RequireQuiz(); err != nil {
		return err
	}
	if stdinIsTerminal() {
		err := promptCredentials(cfg, os.Stdin, os.Stderr, func() ([]byte, error) {
			return term.ReadPassword(int(os.Stdin.Fd()))
		})
		if err != nil {
			return err
		}
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	log.Info("quiz",
		zap.Int("course_id", cfg.CourseID),
		zap.Int("quiz_id", cfg.QuizID),
		zap.Int("user_id", cfg.UserID))

	out := filepath.Join(cfg.OutputDir, quiz.OutputName(cfg.QuizID, cfg.UserID))
	return render(ctx, cfg, log, out, func(s *onepage.Session) error {
		err := quiz.Login(ctx, s,
			quiz.Credentials{Username: cfg.Username, Password: cfg.Password},
			quiz.LoginPage{
				URL:           cfg.Site.BaseURL,
				LinkText:      cfg.Site.LoginLinkText,
				UsernameField: cfg.Site.UsernameField,
				PasswordField: cfg.Site.PasswordField,
				SubmitButton:  cfg.Site.SubmitButton,
			})
		if err != nil {
			return err
		}

		url := quiz.HistoryURL(cfg.Site.BaseURL, cfg.CourseID, cfg.QuizID, cfg.UserID)
		log.Info("opening history", zap.String("url", url))
		if err := s.Navigate(ctx, url); err != nil {
			return err
		}
		removed, err := quiz.DefaultCleaner().Clean(ctx, s)
		if err != nil {
			return err
		}
		log.Debug("page cleaned", zap.Int("removed", removed))
		return nil
	})
}

// promptCredentials asks for whichever of username and password is missing.
// The username is read as a line from in; the password comes from
// readPassword so that it is not echoed.
func promptCredentials(cfg *config.Config, in io.Reader, out io.Writer, readPassword func() ([]byte, error)) error {
	if cfg.Username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return fmt.Errorf("reading username: %w", err)
		}
		cfg.Username = strings.TrimSpace(line)
	}
	if cfg.Password == "" {
		fmt.Fprint(out, "Password: ")
		pw, err := readPassword()
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		cfg.Password = string(pw)
	}
	return nil
}

// runFile implements the "file" command.
func runFile(ctx context.Context, args []string) error {
	cfg, fs, log, err := setup("file", args)
	if err != nil {
		return err
	}
	defer log.Sync()

	if fs.NArg() != 1 {
		return fmt.Errorf("expected one input file, got %d", fs.NArg())
	}
	input := fs.Arg(0)
	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	page := string(raw)
	if skip, _ := fs.GetBool("raw"); !skip {
		var buf bytes.Buffer
		removed, err := quiz.DefaultCleaner().CleanHTML(bytes.NewReader(raw), &buf)
		if err != nil {
			return err
		}
		log.Debug("page cleaned", zap.Int("removed", removed))
		page = buf.String()
	}

	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".pdf"
	out := filepath.Join(cfg.OutputDir, name)
	return render(ctx, cfg, log, out, func(s *onepage.Session) error {
		return s.LoadHTML(ctx, page)
	})
}

// runInfo implements the "info" command.
func runInfo(args []string, w io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no input file specified")
	}
	inputFile := args[0]

	doc, err := pdf.Open(inputFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputFile, err)
	}

	pages, err := doc.Pages()
	if err != nil {
		return fmt.Errorf("reading pages: %w", err)
	}

	fmt.Fprintf(w, "File:    %s\n", inputFile)
	fmt.Fprintf(w, "Version: PDF-%s\n", doc.Version())
	fmt.Fprintf(w, "Pages:   %d\n", len(pages))

	if len(pages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Page dimensions:")
		for i, page := range pages {
			info := doc.PageInfo(page)
			fmt.Fprintf(w, "  Page %d: %.0f x %.0f pt (%.2f x %.2f in)",
				i+1, info.Width, info.Height, info.Width/72, info.Height/72)
			if info.Rotation != 0 {
				fmt.Fprintf(w, " (rotated %d°)", info.Rotation)
			}
			fmt.Fprintln(w)
		}
	}

	return nil
}
