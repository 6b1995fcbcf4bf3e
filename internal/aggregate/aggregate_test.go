package aggregate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"examsearch/internal/models"
	"examsearch/internal/providers"
	"examsearch/internal/util"

	"github.com/stretchr/testify/require"
)

var headers = []string{"問題ID", "問題タイトル", "分野"}

func sheet(id, name string, rows ...[]string) providers.StaticDocument {
	return providers.StaticDocument{
		Document: providers.Document{ID: id, Name: name, MimeType: providers.SpreadsheetMimeType},
		Headers:  headers,
		Rows:     rows,
	}
}

func newAggregator(src *providers.StaticSource, concurrency int) *Aggregator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(func(providers.Credentials) providers.DocumentSource { return src }, Options{
		Concurrency: concurrency,
		DefaultYear: 2024,
		Logger:      logger,
	})
}

func ids(exams []models.Exam) []string {
	out := make([]string, 0, len(exams))
	for _, e := range exams {
		out = append(out, e.ID)
	}
	return out
}

func TestFetchAllPreservesListingAndRowOrder(t *testing.T) {
	src := providers.NewStaticSource(
		sheet("d1", "2023", []string{"DR2301_002", "b", "1"}, []string{"DR2301_001", "a", "1"}),
		sheet("d2", "2024", []string{"DR2401_001", "c", "2"}),
		sheet("d3", "2022", []string{"DR2201_009", "d", "3"}, []string{"", "skipped"}, []string{"DR2201_001", "e", "3"}),
	)
	exams, err := newAggregator(src, 1).FetchAll(context.Background(), "folder", providers.Credentials{})
	require.NoError(t, err)
	require.Equal(t, []string{"DR2301_002", "DR2301_001", "DR2401_001", "DR2201_009", "DR2201_001"}, ids(exams))
	require.Equal(t, "2022", exams[4].FileName)
	require.Equal(t, 4, exams[4].RowNumber)
}

func TestFetchAllToleratesDocumentFailures(t *testing.T) {
	src := providers.NewStaticSource(
		sheet("ok1", "ok1", []string{"A1", "t", "1"}),
		sheet("bad", "bad", []string{"B1", "t", "1"}),
		sheet("ok2", "ok2", []string{"C1", "t", "1"}),
	)
	src.FailDocument("bad", errors.New("sheet deleted"))
	exams, err := newAggregator(src, 3).FetchAll(context.Background(), "folder", providers.Credentials{})
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "C1"}, ids(exams))
}

func TestFetchAllSkipsHeaderOnlyTrashedAndForeignDocuments(t *testing.T) {
	trashed := sheet("t", "trashed", []string{"T1", "t", "1"})
	trashed.Trashed = true
	pdf := sheet("p", "notes.pdf", []string{"P1", "t", "1"})
	pdf.MimeType = "application/pdf"
	src := providers.NewStaticSource(
		sheet("h", "header-only"),
		trashed,
		pdf,
		sheet("ok", "ok", []string{"OK1", "t", "1"}),
	)
	exams, err := newAggregator(src, 2).FetchAll(context.Background(), "folder", providers.Credentials{})
	require.NoError(t, err)
	require.Equal(t, []string{"OK1"}, ids(exams))
	require.Equal(t, 0, src.Fetches("t"))
	require.Equal(t, 0, src.Fetches("p"))
}

func TestFetchAllRecoversFromPanickingSource(t *testing.T) {
	src := providers.NewStaticSource(sheet("ok", "ok", []string{"OK1", "t", "1"}))
	agg := New(func(providers.Credentials) providers.DocumentSource {
		return panicOn{StaticSource: src, id: "boom"}
	}, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	exams, err := agg.FetchAll(context.Background(), "folder", providers.Credentials{})
	require.NoError(t, err)
	require.Equal(t, []string{"OK1"}, ids(exams))
}

func TestFetchAllFailsWhenListingFails(t *testing.T) {
	src := providers.NewStaticSource(sheet("ok", "ok", []string{"OK1", "t", "1"}))
	src.FailListing(&providers.StatusError{API: "drive", Code: 401, Body: "expired"})
	_, err := newAggregator(src, 2).FetchAll(context.Background(), "folder", providers.Credentials{})
	require.Error(t, err)
	require.True(t, errors.Is(err, util.ErrUnauthorized))
}

type panicOn struct {
	*providers.StaticSource
	id string
}

func (p panicOn) ListDocuments(ctx context.Context, collectionID string) ([]providers.Document, error) {
	docs, err := p.StaticSource.ListDocuments(ctx, collectionID)
	return append([]providers.Document{{ID: p.id, Name: p.id}}, docs...), err
}

func (p panicOn) FetchRange(ctx context.Context, documentID, rangeSpec string) (providers.Table, error) {
	if documentID == p.id {
		panic("malformed sheet")
	}
	return p.StaticSource.FetchRange(ctx, documentID, rangeSpec)
}
