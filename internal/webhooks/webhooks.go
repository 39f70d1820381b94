// Package webhooks posts committed merges to HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/tracing"
)

const (
	defaultTimeout     = 2 * time.Second
	defaultConcurrency = 4
)

// Payload is the JSON body posted for each committed merge.
type Payload struct {
	Event         string   `json:"event"`
	Kind          string   `json:"kind"`
	BaseUUID      string   `json:"base_uuid"`
	BaseID        string   `json:"base_id"`
	OtherUUID     string   `json:"other_uuid"`
	OtherID       string   `json:"other_id"`
	ActorUUID     string   `json:"actor_uuid"`
	ETag          int64    `json:"etag"`
	ChangedFields []string `json:"changed_fields"`
	Transferred   int      `json:"transferred"`
	Collapsed     int      `json:"collapsed"`
	Discarded     int      `json:"discarded"`
}

// Dispatcher sends merge payloads to a fixed set of URLs. URLs may contain
// {kind}, {base_id} and {other_id} placeholders.
type Dispatcher struct {
	urls   []string
	client *http.Client
	logger *zap.Logger
}

var _ merge.Notifier = (*Dispatcher)(nil)

// NewDispatcher drops blank, duplicate and non-http(s) URLs.
func NewDispatcher(urls []string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		u := strings.TrimRight(strings.TrimSpace(raw), "/")
		if u == "" {
			continue
		}
		if !isValidWebhookURL(u) {
			logger.Warn("skipping invalid webhook url", zap.String("url", u))
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		d.urls = append(d.urls, u)
	}
	return d
}

// URLs returns the normalized targets.
func (d *Dispatcher) URLs() []string { return d.urls }

// NewPayload builds the body for a committed merge.
func NewPayload(actorUUID string, res *merge.Result) Payload {
	p := Payload{
		Event:         res.Kind + ".merged",
		Kind:          res.Kind,
		BaseUUID:      res.BaseUUID,
		BaseID:        res.BaseID,
		OtherUUID:     res.OtherUUID,
		OtherID:       res.OtherID,
		ActorUUID:     actorUUID,
		ETag:          res.ETag,
		ChangedFields: []string{},
	}
	for _, f := range res.ChangedFields() {
		p.ChangedFields = append(p.ChangedFields, f.Field)
	}
	for _, r := range res.Relations {
		p.Transferred += r.Transferred
		p.Collapsed += r.Collapsed
		p.Discarded += r.Discarded
	}
	return p
}

// MergeCommitted posts the merge to every URL and waits for the requests to
// finish. The error lists the endpoints that failed.
func (d *Dispatcher) MergeCommitted(ctx context.Context, actorUUID string, res *merge.Result) error {
	if len(d.urls) == 0 || res.DryRun {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "webhooks.Dispatcher.MergeCommitted")
	defer span.End()

	payload := NewPayload(actorUUID, res)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	workers := min(defaultConcurrency, len(d.urls))
	jobs := make(chan string)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				if err := d.send(ctx, endpoint, body); err != nil {
					d.logger.Warn("webhook delivery failed", zap.String("url", endpoint), zap.Error(err))
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}
	for _, u := range d.urls {
		jobs <- applyTemplate(u, payload)
	}
	close(jobs)
	wg.Wait()

	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request %q: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %q: %w", endpoint, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %q: %s", endpoint, resp.Status)
	}
	return nil
}

func applyTemplate(raw string, p Payload) string {
	r := strings.NewReplacer("{kind}", p.Kind, "{base_id}", p.BaseID, "{other_id}", p.OtherID)
	return r.Replace(raw)
}

func isValidWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}
