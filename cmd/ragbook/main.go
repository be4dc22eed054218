// Copyright 2025 Calen Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/calenlabs/ragbook"
	"github.com/calenlabs/ragbook/config"
	"github.com/calenlabs/ragbook/core"
	"github.com/calenlabs/ragbook/ingestion"
	"github.com/calenlabs/ragbook/query"
)

func main() {
	app := &cli.App{
		Name:  "ragbook",
		Usage: "Retrieval-augmented question answering over a textbook corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Chunk, embed, and index the document corpus",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "docs",
						Aliases: []string{"d"},
						Usage:   "Corpus directory (overrides config)",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Drop and rebuild the collection before ingesting",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Ask a question against the indexed corpus",
				Action:    queryCommand,
				ArgsUsage: "QUESTION",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "selected-text",
						Aliases: []string{"s"},
						Usage:   "Answer about this excerpt instead of retrieving context",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print retrieval details for each stage",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full response as JSON",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the query API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Aliases: []string{"a"},
						Usage:   "Listen address (overrides config)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if docs := c.String("docs"); docs != "" {
		cfg.Corpus.Dir = docs
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Serve.Addr = addr
	}
	return cfg, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	system, err := ragbook.NewSystem(cfg)
	if err != nil {
		return err
	}
	defer system.Close()

	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	progress := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Embedding"),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}

	pipeline, err := system.NewIngestionPipeline(ingestion.WithProgress(progress))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Corpus: %s\n", cfg.Corpus.Dir)
	fmt.Fprintf(os.Stderr, "Collection: %s (%s)\n", cfg.Store.Collection, cfg.Store.Backend)
	fmt.Fprintf(os.Stderr, "Chunking: size=%d overlap=%d\n\n", cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)

	start := time.Now()
	stats, err := pipeline.Run(ctx, c.Bool("force"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nIngested %d documents, %d chunks, %d records (dimension %d) in %s\n",
		stats.Documents, stats.Chunks, stats.Records, stats.Dimension,
		time.Since(start).Round(time.Millisecond))
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("%w: question argument is required", core.ErrValidation)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	system, err := ragbook.NewSystem(cfg)
	if err != nil {
		return err
	}
	defer system.Close()

	orchestrator, err := system.NewOrchestrator()
	if err != nil {
		return err
	}

	request := core.Query{
		Question:     question,
		SelectedText: c.String("selected-text"),
	}

	var monitor query.Monitor
	if c.Bool("verbose") {
		monitor = &verboseMonitor{out: os.Stderr}
	}

	answer, err := orchestrator.AnswerWithMonitor(ctx, request, monitor)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(answer)
	}

	fmt.Println(answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, source := range answer.Sources {
			fmt.Printf("  %-40s %s (%.3f)\n", source.Source, source.Section, source.Score)
		}
	}
	fmt.Fprintf(os.Stderr, "\n[%s, %dms]\n", answer.Mode, answer.ResponseTimeMS)
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	system, err := ragbook.NewSystem(cfg)
	if err != nil {
		return err
	}
	defer system.Close()

	server, err := newServer(system)
	if err != nil {
		return err
	}

	slog.Info("serving", "addr", cfg.Serve.Addr, "collection", cfg.Store.Collection)
	return server.ListenAndServe(cfg.Serve.Addr)
}

// verboseMonitor prints each answering stage to the given writer.
type verboseMonitor struct {
	out *os.File
}

var _ query.Monitor = (*verboseMonitor)(nil)

func (m *verboseMonitor) Start(question string) {
	fmt.Fprintf(m.out, "question: %s\n", question)
}

func (m *verboseMonitor) ModeSelected(mode core.Mode) {
	fmt.Fprintf(m.out, "mode: %s\n", mode)
}

func (m *verboseMonitor) AfterRetrieval(hits []core.Hit, kept int) {
	fmt.Fprintf(m.out, "retrieved %d chunks, %d above relevance floor\n", len(hits), kept)
	for _, hit := range hits {
		fmt.Fprintf(m.out, "  %.3f  %s [%s]\n", hit.Score, hit.Payload.Source, hit.Payload.Section)
	}
}

func (m *verboseMonitor) AfterGeneration(_ string, elapsed time.Duration) {
	fmt.Fprintf(m.out, "generation took %s\n", elapsed.Round(time.Millisecond))
}

func (m *verboseMonitor) Finish(_ *core.Answer) {}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
