package providers

import (
	"fmt"
	"strings"

	"examsearch/internal/config"
)

// NewSourceFactory picks the document source named by cfg.Source.
func NewSourceFactory(cfg config.Config) (SourceFactory, error) {
	switch strings.ToLower(cfg.Source) {
	case "google":
		gc := GoogleConfig{
			DriveAPIBase:  cfg.DriveAPIBase,
			SheetsAPIBase: cfg.SheetsAPIBase,
			Timeout:       cfg.HTTPTimeout(),
		}
		return func(creds Credentials) DocumentSource {
			return NewGoogleSource(gc, creds)
		}, nil
	case "static":
		src, err := LoadStaticSource(cfg.StaticSourcePath)
		if err != nil {
			return nil, err
		}
		return func(Credentials) DocumentSource { return src }, nil
	default:
		return nil, fmt.Errorf("unsupported document source: %s", cfg.Source)
	}
}
