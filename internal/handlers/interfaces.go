package handlers

import (
	"context"

	"postdeck/internal/orchestrator"
	"postdeck/internal/platform"
	"postdeck/internal/platform/twitter"
	"postdeck/internal/store"
)

type Publisher interface {
	Publish(ctx context.Context, req orchestrator.PublishRequest, notify bool) orchestrator.Envelope
}

type PostStore interface {
	InsertScheduledPost(ctx context.Context, post *store.ScheduledPost) error
	ListScheduledPostsByUser(ctx context.Context, userID string, limit int) ([]store.ScheduledPost, error)
	CancelScheduledPost(ctx context.Context, id, userID string) (bool, error)
}

type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (bool, error)
}

type CredentialStore interface {
	SetCredential(ctx context.Context, userID string, cred platform.Credential) error
}

type MediaStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type TwitterAuthorizer interface {
	StartAuthorization(ctx context.Context, callbackURL string) (*twitter.RequestToken, error)
	ExchangeVerifier(ctx context.Context, requestToken, requestSecret, verifier string) (*twitter.AccessToken, error)
}

type CaptionGenerator interface {
	GenerateCaption(ctx context.Context, prompt string) (string, error)
}
