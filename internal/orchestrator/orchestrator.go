// Package orchestrator fans a publish request out to every requested
// platform and aggregates the per-platform outcomes into one envelope.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"postdeck/internal/captions"
	"postdeck/internal/platform"
	"postdeck/internal/store"
	"postdeck/pkg/logging"
)

// CredentialSource resolves a user's stored credential for one platform.
type CredentialSource interface {
	GetCredential(ctx context.Context, userID string, p platform.Platform) (*platform.Credential, error)
}

// NotificationSink records one notification per publish attempt.
type NotificationSink interface {
	AppendNotification(ctx context.Context, n *store.Notification) error
}

// PublishRequest is one publish attempt across one or more platforms.
type PublishRequest struct {
	UserID   string
	Platform []platform.Platform
	Caption  string
	MediaURL string
}

// Envelope aggregates the per-platform results of one publish attempt.
// AllSuccess, PartialSuccess and AllFailed are mutually exclusive.
type Envelope struct {
	Success        bool                                  `json:"success"`
	Results        map[platform.Platform]platform.Result `json:"results"`
	AllSuccess     bool                                  `json:"allSuccess"`
	PartialSuccess bool                                  `json:"partialSuccess"`
	AllFailed      bool                                  `json:"multiPlatformFailed"`
}

// Orchestrator dispatches publish requests through the platform registry.
type Orchestrator struct {
	logger        logging.Logger
	registry      *platform.Registry
	credentials   CredentialSource
	notifications NotificationSink
	now           func() time.Time

	publishTotal *prometheus.CounterVec
}

// New creates an Orchestrator. The notification sink may be nil when no
// notification storage is configured.
func New(logger logging.Logger, registry *platform.Registry, credentials CredentialSource, notifications NotificationSink) *Orchestrator {
	return &Orchestrator{
		logger:        logger,
		registry:      registry,
		credentials:   credentials,
		notifications: notifications,
		now:           time.Now,
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "postdeck_publish_attempts_total",
			Help: "Publish attempts by platform and result status",
		}, []string{"platform", "status"}),
	}
}

// Metrics returns the orchestrator's collectors for registration.
func (o *Orchestrator) Metrics() []prometheus.Collector {
	return []prometheus.Collector{o.publishTotal}
}

// Publish fans the request out to every requested platform concurrently and
// never returns an error: each per-platform failure becomes a failed result
// in the envelope. When notify is true a notification row is appended; the
// scheduler passes false and writes its own, so scheduled posts get exactly
// one notification.
func (o *Orchestrator) Publish(ctx context.Context, req PublishRequest, notify bool) Envelope {
	results := make(map[platform.Platform]platform.Result, len(req.Platform))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range req.Platform {
		wg.Add(1)
		go func(p platform.Platform) {
			defer wg.Done()
			result := o.publishOne(ctx, p, req)
			mu.Lock()
			results[p] = result
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	envelope := classify(results)
	for p, r := range results {
		o.publishTotal.WithLabelValues(string(p), string(r.Status)).Inc()
	}

	if notify {
		o.recordNotification(ctx, req, envelope)
	}
	return envelope
}

// publishOne resolves the credential, optimizes the caption and invokes the
// platform client, applying the platform's fallback policy on failure. A
// panic in a client is contained to that platform's result.
func (o *Orchestrator) publishOne(ctx context.Context, p platform.Platform, req PublishRequest) (result platform.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logging.Fields{"platform": p, "panic": r}).Error("Publish panicked")
			result = platform.FailedResult(fmt.Errorf("internal error publishing to %s", p))
		}
	}()

	entry, ok := o.registry.Lookup(p)
	if !ok {
		return platform.FailedResult(fmt.Errorf("unsupported platform %q", p))
	}

	caption := captions.Optimize(p, req.Caption)

	cred, err := o.credentials.GetCredential(ctx, req.UserID, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = &platform.ErrNotLinked{Platform: p}
		} else {
			o.logger.WithFields(logging.Fields{"platform": p, "error": err}).Error("Credential lookup failed")
		}
		return o.degrade(p, entry, caption, req.MediaURL, err)
	}
	if cred.IsExpired(o.now()) {
		return platform.NeedsReauthResult(p)
	}

	published, err := entry.Client.Publish(ctx, *cred, caption, req.MediaURL)
	if err != nil {
		o.logger.WithFields(logging.Fields{
			"platform": p,
			"user_id":  req.UserID,
			"error":    err,
		}).Warn("Platform publish failed")
		return o.degrade(p, entry, caption, req.MediaURL, err)
	}
	if published.OptimizedCaption == "" {
		published.OptimizedCaption = caption
	}
	return published
}

// degrade applies the registry fallback for a failed attempt. Platforms
// without a fallback (instagram) surface the error as a failed result.
func (o *Orchestrator) degrade(p platform.Platform, entry platform.Entry, caption, mediaURL string, cause error) platform.Result {
	if entry.Fallback == nil {
		return platform.FailedResult(cause)
	}
	result := entry.Fallback(caption, mediaURL)
	if result.OptimizedCaption == "" {
		result.OptimizedCaption = caption
	}
	return result
}

func classify(results map[platform.Platform]platform.Result) Envelope {
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	envelope := Envelope{Results: results}
	switch {
	case len(results) > 0 && succeeded == len(results):
		envelope.AllSuccess = true
	case succeeded == 0:
		envelope.AllFailed = true
	default:
		envelope.PartialSuccess = true
	}
	envelope.Success = !envelope.AllFailed
	return envelope
}

// recordNotification appends a notification row; storage failures are
// logged and swallowed so they never affect the publish outcome.
func (o *Orchestrator) recordNotification(ctx context.Context, req PublishRequest, envelope Envelope) {
	if o.notifications == nil {
		return
	}

	status := "failed"
	switch {
	case envelope.AllSuccess:
		status = "success"
	case envelope.PartialSuccess:
		status = "partial"
	}

	links := make(map[string]string)
	for p, r := range envelope.Results {
		if r.Succeeded() && r.URL != "" {
			links[string(p)] = r.URL
		}
	}
	rawLinks, err := json.Marshal(links)
	if err != nil {
		rawLinks = []byte("{}")
	}

	n := &store.Notification{
		UserID:    req.UserID,
		Type:      "publish",
		Status:    status,
		Platforms: req.Platform,
		PostLinks: rawLinks,
		Caption:   req.Caption,
		ImageURL:  req.MediaURL,
	}
	if err := o.notifications.AppendNotification(ctx, n); err != nil {
		o.logger.WithFields(logging.Fields{"user_id": req.UserID, "error": err}).Error("Failed to record publish notification")
	}
}
