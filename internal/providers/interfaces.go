package providers

import "context"

const SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Credentials carry the caller's upstream access token.
type Credentials struct {
	AccessToken string
}

type Document struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Trashed  bool   `json:"trashed"`
}

// Table is one fetched range: the first row as headers, the rest as data rows.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type DocumentSource interface {
	ListDocuments(ctx context.Context, collectionID string) ([]Document, error)
	FetchRange(ctx context.Context, documentID, rangeSpec string) (Table, error)
}

// SourceFactory opens a DocumentSource bound to one caller's credentials.
type SourceFactory func(creds Credentials) DocumentSource
