package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"advisor/internal/bootstrap"
	"advisor/internal/calc"
	"advisor/internal/tracking"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

const usage = `Usage: advisor <command> [arguments]

Commands:
  serve             start the REST API (default)
  ask "<query>"     run one query through the guardrail and the crew
  calc "<expr>"     evaluate one arithmetic expression
  runs              print crew run events published to Kafka
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cmd := "serve"
	args := flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve()
	case "ask":
		err = ask(strings.Join(args, " "))
	case "calc":
		err = evaluate(strings.Join(args, " "))
	case "runs":
		err = watchRuns()
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// serve runs the API until SIGINT or SIGTERM
func serve() error {
	c := bootstrap.NewContainer()
	c.MustInit()
	c.MustInitApplication()
	defer logger.Sync()

	if err := c.Start(); err != nil {
		return err
	}

	waitForShutdown(c)
	return nil
}

func ask(query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.Wrap(errors.ErrInvalidInput, `usage: advisor ask "<query>"`)
	}

	c := bootstrap.NewContainer()
	c.MustInit()
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	requestID := uuid.NewString()
	ctx = errors.WithRequestID(ctx, requestID)

	start := time.Now()
	out, err := c.Ask(ctx, query)
	elapsed := time.Since(start)
	c.TrackRun(context.WithoutCancel(ctx), requestID, query, elapsed, out, err)

	if err != nil {
		return err
	}

	fmt.Print("\n\n=== FINAL REPORT ===\n\n")
	fmt.Println(out.Raw)
	fmt.Printf("\n\nExecution time: %.2f seconds (%s tokens)\n",
		elapsed.Seconds(), humanize.Comma(out.TokenUsage.TotalTokens))
	return nil
}

func evaluate(expr string) error {
	result, err := calc.Evaluate(expr)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}

// watchRuns prints run events as JSON lines until interrupted
func watchRuns() error {
	c := bootstrap.NewContainer()
	c.MustInitConfig()
	defer logger.Sync()

	consumer, err := bootstrap.ProvideRunConsumer(c.Config, c.Log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = tracking.Watch(ctx, consumer, func(ev tracking.RunEvent) {
		_ = enc.Encode(ev)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(c *bootstrap.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		c.Log.Info("Shutting down...")
	case <-c.Context.Done():
		c.Log.Warn("Server stopped unexpectedly, shutting down...")
	}

	c.Shutdown()
	c.Log.Info("Shutdown complete")
}
