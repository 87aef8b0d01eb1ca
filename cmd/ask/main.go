package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"chem-assistant/internal/app"
	"chem-assistant/internal/client"
)

const usage = `প্রশ্ন লিখে Enter চাপুন।
  /image <path>   পরের প্রশ্নের সাথে ছবি যোগ করুন
  /noimage        ছবি সরান
  /regenerate     আগের উত্তর আবার তৈরি করুন
  /simplify       আগের উত্তর আরও সহজ করুন
  /quit           বন্ধ করুন`

func main() {
	deps, err := app.BuildClient()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Sessions.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := newTerminalView(os.Stdout)
	c, err := client.New(ctx, client.Options{
		BaseURL:    deps.Config.AssistantURL,
		Encoding:   client.Encoding(deps.Config.ClientEncoding),
		HTTPClient: deps.HTTP,
		View:       view,
		Sessions:   deps.Sessions,
		Log:        deps.Log,
	})
	if err != nil {
		deps.Log.Error("failed to create client", "err", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stdout, usage)
	if err := run(ctx, deps.Log, c, view, os.Stdin); err != nil {
		deps.Log.Error("input failed", "err", err)
		os.Exit(1)
	}
}

// run reads commands until EOF, /quit, or cancellation.
func run(ctx context.Context, log *slog.Logger, c *client.Client, view *terminalView, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var image *client.Attachment
	for {
		view.prompt(image)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/help":
			view.println(usage)
		case "/image":
			img, err := loadImage(strings.TrimSpace(arg))
			if err != nil {
				view.ShowError(err.Error())
				continue
			}
			image = img
		case "/noimage":
			image = nil
		case "/regenerate":
			submit(ctx, log, c, client.Request{Action: client.ActionRegenerate})
		case "/simplify":
			submit(ctx, log, c, client.Request{Action: client.ActionSimplify})
		default:
			if submit(ctx, log, c, client.Request{Action: client.ActionAsk, Question: line, Image: image}) {
				image = nil
			}
		}
	}
}

// submit sends req and reports success. Failures are already on the view.
func submit(ctx context.Context, log *slog.Logger, c *client.Client, req client.Request) bool {
	if _, err := c.Submit(ctx, req); err != nil {
		log.Debug("submit failed", "action", req.Action, "err", err)
		return false
	}
	return true
}

func loadImage(path string) (*client.Attachment, error) {
	if path == "" {
		return nil, errors.New("ছবির পথ দিন: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ছবি পড়া যায়নি: %w", err)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("এটি ছবি নয় (%s)", contentType)
	}
	return &client.Attachment{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
