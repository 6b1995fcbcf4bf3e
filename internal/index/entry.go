package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"examsearch/internal/models"
)

const keyPrefix = "search_index:"

// CacheKey is the external cache key of a scope's index.
func CacheKey(scope string) string {
	return keyPrefix + scope
}

type entry struct {
	Exams     []models.Exam `json:"exams"`
	CreatedAt int64         `json:"createdAt"`
	BuildID   string        `json:"buildId,omitempty"`
}

type entryHeader struct {
	CreatedAt int64  `json:"createdAt"`
	BuildID   string `json:"buildId"`
}

// Encode serializes a snapshot into its cache representation.
func Encode(snap *Snapshot) ([]byte, error) {
	exams := snap.Exams
	if exams == nil {
		exams = []models.Exam{}
	}
	raw, err := json.Marshal(entry{Exams: exams, CreatedAt: snap.BuiltAt.UnixMilli(), BuildID: snap.BuildID})
	if err != nil {
		return nil, fmt.Errorf("encode index entry: %w", err)
	}
	return raw, nil
}

// Decode rebuilds a snapshot from its cache representation.
func Decode(scope string, raw []byte) (*Snapshot, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode index entry: %w", err)
	}
	if e.Exams == nil {
		return nil, errors.New("decode index entry: no exams")
	}
	return &Snapshot{
		Scope:     scope,
		Exams:     e.Exams,
		BuiltAt:   time.UnixMilli(e.CreatedAt),
		BuildID:   e.BuildID,
		FromCache: true,
	}, nil
}

func decodeHeader(raw []byte) (entryHeader, error) {
	var h entryHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return entryHeader{}, fmt.Errorf("decode index entry header: %w", err)
	}
	return h, nil
}
