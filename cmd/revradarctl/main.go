// revradarctl runs the statement analysis pipeline against local PDF files
// without the HTTP service or a database: extract, classify, aggregate,
// print the report to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/revradar/revradar/internal/agent"
	"github.com/revradar/revradar/internal/classify"
	"github.com/revradar/revradar/internal/extract"
	"github.com/revradar/revradar/internal/normalize"
	"github.com/revradar/revradar/internal/report"
)

type options struct {
	extractorPath string
	extractorURL  string
	comment       string
	useAgent      bool
	asJSON        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.extractorPath, "extractor", os.Getenv("PDF_EXTRACTOR_PATH"), "path to the PDF extractor binary")
	flag.StringVar(&opts.extractorURL, "extractor-url", os.Getenv("PDF_EXTRACTOR_URL"), "base URL of the PDF extractor service (takes precedence)")
	flag.StringVar(&opts.comment, "comment", "", "analyst comment passed to the classification agent")
	flag.BoolVar(&opts.useAgent, "agent", false, "resolve ambiguous transactions via the LLM agent (needs LLM_API_KEY)")
	flag.BoolVar(&opts.asJSON, "json", false, "print the structured summary as JSON instead of the text report")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: revradarctl [flags] statement.pdf [statement.pdf ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger, opts, flag.Args()); err != nil {
		logger.Error("analysis failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options, paths []string) error {
	extractor, err := pickExtractor(logger, opts)
	if err != nil {
		return err
	}

	inputs := make([]extract.Input, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		inputs = append(inputs, extract.Input{Name: filepath.Base(path), Data: data})
	}

	results, err := extractor.Process(ctx, inputs)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}

	currency := "KZT"
	var revenue, nonRevenue, ambiguous []txn
	index := 0
	for _, res := range results {
		if res.Error != "" {
			logger.Warn("file skipped", slog.String("file", res.SourceFile), slog.String("error", res.Error))
			continue
		}
		if c, ok := res.Metadata["currency"].(string); ok && strings.TrimSpace(c) != "" && currency == "KZT" {
			currency = strings.ToUpper(strings.TrimSpace(c))
		}
		for _, rec := range res.Transactions {
			index++
			t := fromRecord(index, rec)
			v := classify.Classify(t.purpose, t.sender)
			t.reason = v.Reason
			t.possibleNonRevenue = v.PossibleNonRevenue
			switch v.Class {
			case classify.Revenue:
				t.source = report.SourceHeuristic
				revenue = append(revenue, t)
			case classify.NonRevenue:
				t.source = report.SourceHeuristic
				nonRevenue = append(nonRevenue, t)
			default:
				ambiguous = append(ambiguous, t)
			}
		}
	}

	if len(ambiguous) > 0 {
		if opts.useAgent && os.Getenv("LLM_API_KEY") != "" {
			agentRevenue, agentNonRevenue, err := reviewWithAgent(ctx, logger, opts.comment, ambiguous)
			if err != nil {
				return err
			}
			revenue = append(revenue, agentRevenue...)
			nonRevenue = append(nonRevenue, agentNonRevenue...)
		} else {
			logger.Warn("classifying ambiguous transactions by heuristic hint only",
				slog.Int("count", len(ambiguous)))
			for _, t := range ambiguous {
				t.source = report.SourceHeuristic
				if t.possibleNonRevenue {
					nonRevenue = append(nonRevenue, t)
				} else {
					revenue = append(revenue, t)
				}
			}
		}
	}

	summary := report.Build(entries(revenue), entries(nonRevenue), currency, time.Now())
	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Println(report.Render(summary))
	return nil
}

func pickExtractor(logger *slog.Logger, opts options) (extract.Extractor, error) {
	if opts.extractorURL != "" {
		return extract.NewClient(opts.extractorURL, extract.DefaultFileTimeout), nil
	}
	if opts.extractorPath != "" {
		return extract.NewSubprocess(opts.extractorPath, logger), nil
	}
	return nil, fmt.Errorf("no extractor configured: pass -extractor or -extractor-url")
}

// txn is the CLI-local transaction shape; the service keeps its own richer
// one alongside session persistence.
type txn struct {
	id                 string
	amount             float64
	date               *time.Time
	purpose            string
	sender             string
	correspondent      string
	bin                string
	reason             string
	source             string
	possibleNonRevenue bool
}

func fromRecord(index int, rec map[string]any) txn {
	t := txn{
		id:            fmt.Sprintf("local_%d", index),
		purpose:       normalize.RecordPurpose(rec),
		sender:        normalize.RecordSender(rec),
		correspondent: normalize.RecordCorrespondent(rec),
		bin:           normalize.RecordBIN(rec),
	}
	_, t.amount = normalize.RecordAmount(rec)
	if d, ok := normalize.RecordDate(rec); ok {
		t.date = &d
	}
	return t
}

func entries(txns []txn) []report.Entry {
	out := make([]report.Entry, 0, len(txns))
	for _, t := range txns {
		out = append(out, report.Entry{
			ID:     t.id,
			Amount: t.amount,
			Date:   t.date,
			Source: t.source,
			Reason: t.reason,
		})
	}
	return out
}

func reviewWithAgent(ctx context.Context, logger *slog.Logger, comment string, ambiguous []txn) (revenue, nonRevenue []txn, err error) {
	client := agent.NewClient(agent.Config{
		BaseURL: envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		APIKey:  os.Getenv("LLM_API_KEY"),
		Model:   envOr("LLM_MODEL", "gpt-4o"),
	}, logger)

	items := make([]agent.ReviewItem, 0, len(ambiguous))
	for _, t := range ambiguous {
		item := agent.ReviewItem{
			ID:            t.id,
			Amount:        t.amount,
			Purpose:       t.purpose,
			Sender:        t.sender,
			Correspondent: t.correspondent,
			BIN:           t.bin,
			Comment:       t.reason,
		}
		if t.date != nil {
			item.Date = t.date.Format("2006-01-02")
		}
		items = append(items, item)
	}

	userMessage, err := agent.BuildUserMessage(items, comment)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.CreateResponse(ctx, agent.SystemPrompt, userMessage)
	if err != nil {
		return nil, nil, fmt.Errorf("agent: %w", err)
	}
	decisions, err := agent.ParseDecisions(resp.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("agent reply: %w", err)
	}
	byID := make(map[string]agent.Decision, len(decisions))
	for _, d := range decisions {
		byID[d.ID] = d
	}

	for _, t := range ambiguous {
		if d, ok := byID[t.id]; ok {
			t.source = report.SourceAgent
			t.reason = d.Reason
			if d.IsRevenue {
				revenue = append(revenue, t)
			} else {
				nonRevenue = append(nonRevenue, t)
			}
			continue
		}
		t.source = report.SourceAgentMissing
		t.reason = "агент не вернул решение"
		nonRevenue = append(nonRevenue, t)
	}
	return revenue, nonRevenue, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
