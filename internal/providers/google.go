package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"examsearch/internal/util"

	"golang.org/x/oauth2"
)

const (
	driveFields   = "nextPageToken,files(id,name,mimeType,trashed)"
	drivePageSize = 100
	maxDrivePages = 50
	maxErrorBody  = 512
)

type GoogleConfig struct {
	DriveAPIBase  string
	SheetsAPIBase string
	Timeout       time.Duration
	// HTTPClient is the base client; its transport is wrapped with the bearer token.
	HTTPClient *http.Client
}

// GoogleSource lists spreadsheets in a Drive folder and reads their values
// through the Sheets API, authenticated as the caller.
type GoogleSource struct {
	driveBase  string
	sheetsBase string
	client     *http.Client
}

func NewGoogleSource(cfg GoogleConfig, creds Credentials) *GoogleSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}))
	client.Timeout = timeout
	return &GoogleSource{
		driveBase:  strings.TrimRight(cfg.DriveAPIBase, "/"),
		sheetsBase: strings.TrimRight(cfg.SheetsAPIBase, "/"),
		client:     client,
	}
}

func (g *GoogleSource) ListDocuments(ctx context.Context, collectionID string) ([]Document, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false",
		strings.ReplaceAll(collectionID, "'", `\'`), SpreadsheetMimeType)

	var docs []Document
	pageToken := ""
	for page := 0; page < maxDrivePages; page++ {
		params := url.Values{}
		params.Set("q", q)
		params.Set("fields", driveFields)
		params.Set("pageSize", strconv.Itoa(drivePageSize))
		params.Set("supportsAllDrives", "true")
		params.Set("includeItemsFromAllDrives", "true")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var parsed struct {
			NextPageToken string     `json:"nextPageToken"`
			Files         []Document `json:"files"`
		}
		if err := g.getJSON(ctx, "drive", g.driveBase+"/files?"+params.Encode(), &parsed); err != nil {
			return nil, fmt.Errorf("list documents in %s: %w", collectionID, err)
		}
		docs = append(docs, parsed.Files...)
		if parsed.NextPageToken == "" {
			return docs, nil
		}
		pageToken = parsed.NextPageToken
	}
	return docs, nil
}

func (g *GoogleSource) FetchRange(ctx context.Context, documentID, rangeSpec string) (Table, error) {
	endpoint := g.sheetsBase + "/spreadsheets/" + url.PathEscape(documentID) + "/values/" + url.PathEscape(rangeSpec)
	var parsed struct {
		Values [][]any `json:"values"`
	}
	if err := g.getJSON(ctx, "sheets", endpoint, &parsed); err != nil {
		return Table{}, fmt.Errorf("fetch range %s of %s: %w", rangeSpec, documentID, err)
	}
	if len(parsed.Values) == 0 {
		return Table{}, nil
	}
	table := Table{
		Headers: cellStrings(parsed.Values[0]),
		Rows:    make([][]string, 0, len(parsed.Values)-1),
	}
	for _, row := range parsed.Values[1:] {
		table.Rows = append(table.Rows, cellStrings(row))
	}
	return table, nil
}

func (g *GoogleSource) getJSON(ctx context.Context, api, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", api, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w: %w", api, util.ErrUpstream, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", api, err)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{API: api, Code: resp.StatusCode, Body: util.TruncateRunes(string(body), maxErrorBody)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", api, err)
	}
	return nil
}

func cellStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case nil:
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(x)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}
