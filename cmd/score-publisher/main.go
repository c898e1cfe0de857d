package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/simon-relay/internal/adapters/broker"
	"github.com/okian/simon-relay/internal/config"
	"github.com/okian/simon-relay/internal/simulator"
	"github.com/okian/simon-relay/pkg/logger"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	def := simulator.DefaultConfig()
	return &cli.App{
		Name:   "score-publisher",
		Usage:  "publish simulated Simon scores to the broker and check the relay stored them",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Value: config.BrokerMQTT, Usage: "broker driver: mqtt or nats", EnvVars: []string{"SIMON_BROKER_DRIVER"}},
			&cli.StringFlag{Name: "broker-url", Value: "tcp://localhost:1883", Usage: "broker endpoint", EnvVars: []string{"SIMON_BROKER_URL"}},
			&cli.StringFlag{Name: "topic", Value: def.Topic, Usage: "score topic"},
			&cli.IntFlag{Name: "events", Value: def.Events, Usage: "number of score messages"},
			&cli.IntFlag{Name: "players", Value: def.Players, Usage: "number of generated players"},
			&cli.IntFlag{Name: "workers", Value: def.Workers, Usage: "concurrent publishers"},
			&cli.IntFlag{Name: "max-score", Value: def.MaxScore, Usage: "highest generated score"},
			&cli.Uint64Flag{Name: "seed", Usage: "generator seed; 0 is random"},
			&cli.StringFlag{Name: "base-url", Value: def.BaseURL, Usage: "relay HTTP base URL"},
			&cli.BoolFlag{Name: "start", Usage: "POST /start for every player first"},
			&cli.BoolFlag{Name: "verify", Usage: "wait until the relay stored every published score"},
			&cli.DurationFlag{Name: "verify-wait", Value: def.VerifyWait, Usage: "how long to wait for verification"},
			&cli.DurationFlag{Name: "timeout", Value: def.Timeout, Usage: "HTTP request and broker connect timeout"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	log := logger.Named("score-publisher")

	bc := config.New()
	bc.BrokerDriver = c.String("driver")
	bc.BrokerURL = c.String("broker-url")
	bc.ClientIDPrefix = "score_publisher"
	bc.ConnectTimeoutMS = int(c.Duration("timeout") / time.Millisecond)

	drv, err := broker.NewDriver(bc, log)
	if err != nil {
		return err
	}

	cfg := simulator.Config{
		Topic:      c.String("topic"),
		Events:     c.Int("events"),
		Players:    c.Int("players"),
		Workers:    c.Int("workers"),
		MaxScore:   c.Int("max-score"),
		Seed:       c.Uint64("seed"),
		BaseURL:    c.String("base-url"),
		Start:      c.Bool("start"),
		Verify:     c.Bool("verify"),
		VerifyWait: c.Duration("verify-wait"),
		Timeout:    c.Duration("timeout"),
	}

	stats, err := simulator.NewRunner(drv, nil, log).Run(c.Context, cfg)
	printSummary(c.App.Writer, stats)
	return err
}

func printSummary(w io.Writer, s simulator.Stats) {
	fmt.Fprintf(w, "players:   %d\n", s.Players)
	if s.SessionsStarted+s.SessionsFailed > 0 {
		fmt.Fprintf(w, "sessions:  %d started, %d failed\n", s.SessionsStarted, s.SessionsFailed)
	}
	fmt.Fprintf(w, "published: %d ok, %d failed\n", s.Published, s.PublishFailed)
	if s.StoredBefore > 0 || s.StoredAfter > 0 || s.Verified {
		fmt.Fprintf(w, "stored:    %d -> %d (verified: %t)\n", s.StoredBefore, s.StoredAfter, s.Verified)
	}
	if s.Newest != "" {
		fmt.Fprintf(w, "newest:    %s\n", s.Newest)
	}
	fmt.Fprintf(w, "duration:  %s\n", s.Duration.Round(time.Millisecond))
}
