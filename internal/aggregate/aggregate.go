// Package aggregate assembles every exam row of a collection of spreadsheets.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"examsearch/internal/models"
	"examsearch/internal/normalize"
	"examsearch/internal/providers"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultRange       = "A1:Z10000"
	DefaultConcurrency = 8
)

type Options struct {
	Range       string
	Concurrency int
	DefaultYear int
	Logger      *slog.Logger
}

type Aggregator struct {
	open        providers.SourceFactory
	rangeSpec   string
	concurrency int
	normalizer  *normalize.Normalizer
	logger      *slog.Logger
}

func New(open providers.SourceFactory, opts Options) *Aggregator {
	if opts.Range == "" {
		opts.Range = DefaultRange
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Aggregator{
		open:        open,
		rangeSpec:   opts.Range,
		concurrency: opts.Concurrency,
		normalizer:  normalize.New(opts.DefaultYear),
		logger:      opts.Logger,
	}
}

// FetchAll lists the collection and normalizes every row of every spreadsheet in
// it. Only a listing failure is returned; a document that cannot be fetched is
// logged and contributes no rows. Output follows listing order, then row order.
func (a *Aggregator) FetchAll(ctx context.Context, collectionID string, creds providers.Credentials) ([]models.Exam, error) {
	src := a.open(creds)
	docs, err := src.ListDocuments(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collectionID, err)
	}
	docs = spreadsheetsOnly(docs)

	perDoc := make([][]models.Exam, len(docs))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			exams, err := a.fetchDocument(ctx, src, doc)
			if err != nil {
				a.logger.Warn("skip document", "document", doc.Name, "id", doc.ID, "error", err)
				return nil
			}
			perDoc[i] = exams
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, exams := range perDoc {
		total += len(exams)
	}
	out := make([]models.Exam, 0, total)
	for _, exams := range perDoc {
		out = append(out, exams...)
	}
	a.logger.Info("aggregated collection", "collection", collectionID, "documents", len(docs), "exams", len(out))
	return out, nil
}

func (a *Aggregator) fetchDocument(ctx context.Context, src providers.DocumentSource, doc providers.Document) (exams []models.Exam, err error) {
	defer func() {
		if r := recover(); r != nil {
			exams, err = nil, fmt.Errorf("panic while reading %s: %v", doc.ID, r)
		}
	}()
	table, err := src.FetchRange(ctx, doc.ID, a.rangeSpec)
	if err != nil {
		return nil, err
	}
	if len(table.Headers) == 0 || len(table.Rows) == 0 {
		return nil, nil
	}
	exams = make([]models.Exam, 0, len(table.Rows))
	for i, row := range table.Rows {
		// Row numbers are 1-based and count the header row.
		exam, ok := a.normalizer.Normalize(row, table.Headers, doc.Name, i+2)
		if !ok {
			continue
		}
		if dups := normalize.DuplicateChoiceLabels(exam); len(dups) > 0 {
			a.logger.Warn("duplicate choice labels", "document", doc.Name, "row", i+2, "id", exam.ID, "labels", dups)
		}
		exams = append(exams, exam)
	}
	return exams, nil
}

func spreadsheetsOnly(docs []providers.Document) []providers.Document {
	out := make([]providers.Document, 0, len(docs))
	for _, d := range docs {
		if d.Trashed {
			continue
		}
		if d.MimeType != "" && d.MimeType != providers.SpreadsheetMimeType {
			continue
		}
		out = append(out, d)
	}
	return out
}
