// Package scheduler polls for due scheduled posts and publishes them
// through the orchestrator.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"postdeck/internal/orchestrator"
	"postdeck/internal/platform"
	"postdeck/internal/store"
	"postdeck/pkg/logging"
)

const defaultPollInterval = time.Minute

// Publisher is the orchestrator surface the worker drives.
type Publisher interface {
	Publish(ctx context.Context, req orchestrator.PublishRequest, notify bool) orchestrator.Envelope
}

// PostStore is the scheduled-post surface the worker needs.
type PostStore interface {
	ListScheduledPostsByStatus(ctx context.Context, status store.Status) ([]store.ScheduledPost, error)
	TransitionScheduledPost(ctx context.Context, id string, from, to store.Status, fields store.TerminalFields) (bool, error)
	AppendNotification(ctx context.Context, n *store.Notification) error
}

// Worker is the background scheduler loop.
type Worker struct {
	logger    logging.Logger
	store     PostStore
	publisher Publisher
	interval  time.Duration
	now       func() time.Time

	running sync.Mutex
}

// NewWorker creates a scheduler worker. A non-positive interval falls back
// to one minute.
func NewWorker(logger logging.Logger, postStore PostStore, publisher Publisher, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Worker{
		logger:    logger,
		store:     postStore,
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
	}
}

// Start runs the poll loop until the context is cancelled. The first cycle
// runs immediately so posts that came due while the service was down are
// picked up on boot.
func (w *Worker) Start(ctx context.Context) {
	w.logger.WithFields(logging.Fields{"interval": w.interval.String()}).Info("Starting scheduled post worker")

	w.RunCycle(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Scheduled post worker stopping")
			return
		case <-ticker.C:
			w.RunCycle(ctx)
		}
	}
}

// RunCycle processes every due pending post once. Cycles are single-flight:
// if a previous cycle is still running this one is skipped.
func (w *Worker) RunCycle(ctx context.Context) {
	if !w.running.TryLock() {
		w.logger.Warn("Previous scheduler cycle still running, skipping")
		return
	}
	defer w.running.Unlock()

	defer func() {
		if r := recover(); r != nil {
			w.logger.WithFields(logging.Fields{"panic": r}).Error("Scheduler cycle panicked")
		}
	}()

	pending, err := w.store.ListScheduledPostsByStatus(ctx, store.StatusPending)
	if err != nil {
		w.logger.WithFields(logging.Fields{"error": err}).Error("Failed to list pending posts")
		return
	}

	now := w.now()
	for _, post := range pending {
		if post.ScheduledAt.After(now) {
			continue
		}
		w.processPost(ctx, post)
	}
}

// processPost publishes one due post and moves it to a terminal status.
// The transition is optimistic: if the post was cancelled while publishing,
// the terminal write is dropped and the outcome logged.
func (w *Worker) processPost(ctx context.Context, post store.ScheduledPost) {
	log := w.logger.WithFields(logging.Fields{
		"post_id":   post.ID,
		"user_id":   post.UserID,
		"platforms": platformNames(post.Platforms),
	})

	// A panic anywhere in the attempt still moves the post to failed; a post
	// never stays pending after its attempt. If the terminal write already
	// happened the from=pending guard makes this a no-op.
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logging.Fields{"panic": r}).Error("Publish attempt panicked")
			transitioned, err := w.store.TransitionScheduledPost(ctx, post.ID, store.StatusPending, store.StatusFailed,
				store.TerminalFields{Error: fmt.Sprintf("publish panicked: %v", r)})
			if err != nil {
				log.WithFields(logging.Fields{"error": err}).Error("Failed to record panicked post outcome")
				return
			}
			if !transitioned {
				log.Warn("Post no longer pending, dropping panic outcome")
			}
		}
	}()

	log.Info("Publishing due scheduled post")

	envelope := w.publisher.Publish(ctx, orchestrator.PublishRequest{
		UserID:   post.UserID,
		Platform: post.Platforms,
		Caption:  post.Content,
		MediaURL: post.MediaURL,
	}, false)

	rawResult, err := json.Marshal(envelope)
	if err != nil {
		log.WithFields(logging.Fields{"error": err}).Error("Failed to encode publish result")
		rawResult = nil
	}

	to := store.StatusPublished
	fields := store.TerminalFields{PublishResult: rawResult, PublishedAt: w.now()}
	if envelope.AllFailed {
		to = store.StatusFailed
		fields = store.TerminalFields{PublishResult: rawResult, Error: summarizeFailure(envelope)}
	}

	transitioned, err := w.store.TransitionScheduledPost(ctx, post.ID, store.StatusPending, to, fields)
	if err != nil {
		log.WithFields(logging.Fields{"error": err, "status": to}).Error("Failed to record post outcome")
		return
	}
	if !transitioned {
		log.Warn("Post no longer pending, dropping outcome")
		return
	}
	log.WithFields(logging.Fields{"status": to}).Info("Scheduled post finished")

	w.recordNotification(ctx, post, envelope)
}

// recordNotification writes the single notification for a scheduled
// publish. Failures are logged and swallowed.
func (w *Worker) recordNotification(ctx context.Context, post store.ScheduledPost, envelope orchestrator.Envelope) {
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
		UserID:    post.UserID,
		Type:      "scheduled_publish",
		Status:    status,
		Platforms: post.Platforms,
		PostLinks: rawLinks,
		Caption:   post.Content,
		ImageURL:  post.MediaURL,
	}
	if err := w.store.AppendNotification(ctx, n); err != nil {
		w.logger.WithFields(logging.Fields{"post_id": post.ID, "error": err}).Error("Failed to record scheduled publish notification")
	}
}

// summarizeFailure picks a representative error for the failed row.
func summarizeFailure(envelope orchestrator.Envelope) string {
	for _, p := range platform.All() {
		if r, ok := envelope.Results[p]; ok && r.Error != "" {
			return string(p) + ": " + r.Error
		}
	}
	return "all platforms failed"
}

func platformNames(ps []platform.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
