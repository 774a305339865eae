// Package renderlog keeps an Elasticsearch index of generated documents keyed
// by build stamp, so a filed document can be traced back to its render.
package renderlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"fra-engine/internal/common/logger"
)

var ErrIndexFailed = errors.New("RENDER_LOG_INDEX_FAILED")

// Entry is one generated document.
type Entry struct {
	InstanceID   string    `json:"instanceId"`
	BuildID      string    `json:"buildId"`
	Version      string    `json:"version"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Sections     []string  `json:"sections"`
	SizeBytes    int       `json:"sizeBytes"`
	DocumentPath string    `json:"documentPath,omitempty"`
}

type Log struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Log {
	if index == "" {
		index = "fra-renders"
	}
	return &Log{client: client, index: index, logger: logger.Component(log, "fra-renderlog")}
}

// Record indexes e under its build id.
func (l *Log) Record(ctx context.Context, e Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	res, err := l.client.Index(
		l.index,
		bytes.NewReader(body),
		l.client.Index.WithContext(ctx),
		l.client.Index.WithDocumentID(e.InstanceID+":"+e.BuildID),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("%w: %s: %s", ErrIndexFailed, res.Status(), msg)
	}

	l.logger.Debug("Render recorded", map[string]interface{}{
		"instanceId": e.InstanceID,
		"buildId":    e.BuildID,
	})
	return nil
}

// Recent returns the latest renders of an instance, newest first.
func (l *Log) Recent(ctx context.Context, instanceID string, size int) ([]Entry, error) {
	if size <= 0 {
		size = 10
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"instanceId.keyword": instanceID},
		},
		"sort": []interface{}{
			map[string]interface{}{"generatedAt": map[string]string{"order": "desc"}},
		},
		"size": size,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := l.client.Search(
		l.client.Search.WithContext(ctx),
		l.client.Search.WithIndex(l.index),
		l.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("render log search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("render log search error: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source Entry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode render log search: %w", err)
	}

	out := make([]Entry, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
