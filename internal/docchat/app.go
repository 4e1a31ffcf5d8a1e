package docchat

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/pkg/app"
)

const (
	appName        = "docchat"
	appDescription = `DocChat - chat with a single document

Upload one document (.txt, .md, .docx), then ask questions about it.
The service chunks and embeds the document into a vector index, answers
questions with retrieval-augmented generation, keeps a bounded
conversation history, and can summarize the document and suggest
questions it is able to answer.`
)

// NewApp creates the docchat application.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("Single-document conversational question answering service"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return run(opts)
		}),
	)
}

func run(opts *Options) error {
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting docchat service", "addr", opts.HTTP.Addr)

	srv, err := NewServer(opts)
	if err != nil {
		return err
	}

	ctx := signalContext()
	return srv.Run(ctx)
}

// signalContext returns a context canceled on SIGINT/SIGTERM. A second
// signal exits immediately.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
		<-ch
		os.Exit(1)
	}()

	return ctx
}
