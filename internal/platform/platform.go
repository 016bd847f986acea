// Package platform defines the publishing contract shared by all social
// platform adapters and the dispatch registry the orchestrator fans out
// through.
package platform

import (
	"context"
	"fmt"
	"time"
)

// Platform identifies a supported social platform. The set is closed:
// adding a platform means adding a constant, a client package and a
// registry entry.
type Platform string

const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	Facebook  Platform = "facebook"
	Instagram Platform = "instagram"
)

// All returns every supported platform in a stable order.
func All() []Platform {
	return []Platform{Twitter, LinkedIn, Facebook, Instagram}
}

// Parse validates a platform name from an API request or a stored row.
func Parse(s string) (Platform, error) {
	switch Platform(s) {
	case Twitter, LinkedIn, Facebook, Instagram:
		return Platform(s), nil
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

// Credential authorizes publish calls on a user's behalf.
type Credential struct {
	Platform          Platform
	AccessToken       string
	AccessTokenSecret string    // twitter only (OAuth1.0a signing secret)
	PageID            string    // facebook page posts
	ExpiresAt         time.Time // zero when the platform token does not expire
}

// IsExpired reports whether the credential has a recorded expiry in the past.
func (c Credential) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// Status classifies the per-platform outcome of one publish attempt.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusNeedsReauth Status = "needs_reauth"
)

// Action says how a successful result was achieved.
type Action string

const (
	ActionAutoPosted    Action = "auto_posted"
	ActionPostPublished Action = "post_published"
	ActionShareDialog   Action = "share_dialog"
)

// Result is the per-platform outcome of one publish attempt.
type Result struct {
	Status           Status `json:"status"`
	Action           Action `json:"action,omitempty"`
	URL              string `json:"url,omitempty"`
	OptimizedCaption string `json:"optimized_caption,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Succeeded reports whether the attempt ended in a usable post or a manual
// hand-off. needs_reauth counts as a failure for aggregation purposes.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// PostedResult builds a success result pointing at a live post.
func PostedResult(action Action, url string) Result {
	return Result{Status: StatusSuccess, Action: action, URL: url}
}

// FailedResult builds a failed result from an error.
func FailedResult(err error) Result {
	return Result{Status: StatusFailed, Error: err.Error()}
}

// NeedsReauthResult marks a credential that has expired and must be
// re-authorized by the user before publishing can work again.
func NeedsReauthResult(p Platform) Result {
	return Result{Status: StatusNeedsReauth, Error: fmt.Sprintf("%s token expired, re-authorization required", p)}
}

// ErrNotLinked is returned (wrapped) when no credential exists for a platform.
type ErrNotLinked struct {
	Platform Platform
}

func (e *ErrNotLinked) Error() string {
	return fmt.Sprintf("%s account not linked", e.Platform)
}

// Client publishes a caption (and optionally hosted media) to one platform.
// Implementations return an error for any upstream failure; the fallback
// policy for that error lives in the registry entry, not in the client.
type Client interface {
	Publish(ctx context.Context, cred Credential, caption, mediaURL string) (Result, error)
}

// FallbackFunc degrades a failed attempt into a manual share-dialog result.
// Platforms without a manual fallback (instagram) register nil.
type FallbackFunc func(caption, mediaURL string) Result

// Entry couples a platform client with its failure policy.
type Entry struct {
	Client   Client
	Fallback FallbackFunc
}

// Registry is the closed dispatch table from platform to adapter.
type Registry struct {
	entries map[Platform]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Platform]Entry)}
}

// Register installs the entry for a platform.
func (r *Registry) Register(p Platform, e Entry) {
	r.entries[p] = e
}

// Lookup returns the entry for a platform.
func (r *Registry) Lookup(p Platform) (Entry, bool) {
	e, ok := r.entries[p]
	return e, ok
}

// Platforms returns the registered platforms in the order of All().
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.entries))
	for _, p := range All() {
		if _, ok := r.entries[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
