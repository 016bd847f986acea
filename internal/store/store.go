// Package store persists credentials, scheduled posts and notifications in
// postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"postdeck/internal/platform"
	fieldcrypt "postdeck/pkg/crypto"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// Status is the lifecycle state of a scheduled post. The scheduler moves
// pending posts to exactly one terminal state; cancelled is set only by
// explicit user action.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ScheduledPost is a post waiting for (or finished with) its publish time.
type ScheduledPost struct {
	ID            string
	UserID        string
	Platforms     []platform.Platform
	Content       string
	MediaURL      string
	ScheduledAt   time.Time
	Status        Status
	PublishResult []byte // JSON envelope from the orchestrator
	Error         string
	PublishedAt   sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TerminalFields carries what a terminal transition records on the row.
type TerminalFields struct {
	PublishResult []byte
	Error         string
	PublishedAt   time.Time // zero = NULL
}

// Notification is one append-only entry per publish attempt.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Status    string
	Platforms []platform.Platform
	PostLinks []byte // JSON object platform -> url
	Caption   string
	ImageURL  string
	Read      bool
	CreatedAt time.Time
}

// Store wraps the postgres connection. Stored tokens are field-encrypted
// when an encryptor is configured.
type Store struct {
	db  *sql.DB
	enc *fieldcrypt.FieldEncryptor // nil = no encryption
}

// New creates a Store.
func New(db *sql.DB, enc *fieldcrypt.FieldEncryptor) *Store {
	return &Store{db: db, enc: enc}
}

func (s *Store) encryptField(plaintext string) (string, error) {
	if s.enc == nil || plaintext == "" {
		return plaintext, nil
	}
	return s.enc.Encrypt(plaintext)
}

func (s *Store) decryptField(stored string) (string, error) {
	if s.enc == nil || stored == "" {
		return stored, nil
	}
	return s.enc.Decrypt(stored)
}

// GetCredential retrieves the stored credential for one user and platform.
func (s *Store) GetCredential(ctx context.Context, userID string, p platform.Platform) (*platform.Credential, error) {
	query := `
		SELECT access_token, access_token_secret, page_id, expires_at
		FROM credentials
		WHERE user_id = $1 AND platform = $2
	`
	var (
		token     string
		secret    sql.NullString
		pageID    sql.NullString
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID, string(p)).Scan(&token, &secret, &pageID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cred := &platform.Credential{Platform: p, PageID: pageID.String}
	if cred.AccessToken, err = s.decryptField(token); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if cred.AccessTokenSecret, err = s.decryptField(secret.String); err != nil {
		return nil, fmt.Errorf("decrypt token secret: %w", err)
	}
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}
	return cred, nil
}

// SetCredential stores a credential, replacing any previous one for the
// same user and platform (full replacement on re-auth).
func (s *Store) SetCredential(ctx context.Context, userID string, cred platform.Credential) error {
	token, err := s.encryptField(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	secret, err := s.encryptField(cred.AccessTokenSecret)
	if err != nil {
		return fmt.Errorf("encrypt token secret: %w", err)
	}

	query := `
		INSERT INTO credentials (user_id, platform, access_token, access_token_secret, page_id, expires_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NOW())
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			access_token_secret = EXCLUDED.access_token_secret,
			page_id = EXCLUDED.page_id,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`
	var expiresAt interface{}
	if !cred.ExpiresAt.IsZero() {
		expiresAt = cred.ExpiresAt
	}
	_, err = s.db.ExecContext(ctx, query, userID, string(cred.Platform), token, secret, cred.PageID, expiresAt)
	return err
}

// InsertScheduledPost stores a new pending post and fills in its id and
// timestamps.
func (s *Store) InsertScheduledPost(ctx context.Context, post *ScheduledPost) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.Status == "" {
		post.Status = StatusPending
	}
	query := `
		INSERT INTO scheduled_posts (id, user_id, platforms, content, media_url, scheduled_at, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		post.ID, post.UserID, pq.Array(platformStrings(post.Platforms)), post.Content,
		post.MediaURL, post.ScheduledAt, string(post.Status),
	).Scan(&post.CreatedAt, &post.UpdatedAt)
}

// ListScheduledPostsByStatus returns every post in the given status,
// oldest schedule first.
func (s *Store) ListScheduledPostsByStatus(ctx context.Context, status Status) ([]ScheduledPost, error) {
	query := `
		SELECT id, user_id, platforms, content, COALESCE(media_url, ''), scheduled_at, status,
		       COALESCE(publish_result, 'null'), COALESCE(error, ''), published_at, created_at, updated_at
		FROM scheduled_posts
		WHERE status = $1
		ORDER BY scheduled_at
	`
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var posts []ScheduledPost
	for rows.Next() {
		var (
			post      ScheduledPost
			rawStatus string
			platforms pq.StringArray
		)
		if err := rows.Scan(&post.ID, &post.UserID, &platforms, &post.Content, &post.MediaURL,
			&post.ScheduledAt, &rawStatus, &post.PublishResult, &post.Error,
			&post.PublishedAt, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, err
		}
		post.Status = Status(rawStatus)
		post.Platforms = parsePlatforms(platforms)
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListScheduledPostsByUser returns a user's posts, newest first.
func (s *Store) ListScheduledPostsByUser(ctx context.Context, userID string, limit int) ([]ScheduledPost, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, platforms, content, COALESCE(media_url, ''), scheduled_at, status,
		       COALESCE(publish_result, 'null'), COALESCE(error, ''), published_at, created_at, updated_at
		FROM scheduled_posts
		WHERE user_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var posts []ScheduledPost
	for rows.Next() {
		var (
			post      ScheduledPost
			rawStatus string
			platforms pq.StringArray
		)
		if err := rows.Scan(&post.ID, &post.UserID, &platforms, &post.Content, &post.MediaURL,
			&post.ScheduledAt, &rawStatus, &post.PublishResult, &post.Error,
			&post.PublishedAt, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, err
		}
		post.Status = Status(rawStatus)
		post.Platforms = parsePlatforms(platforms)
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// TransitionScheduledPost moves a post from one status to another, but only
// if it is still in the expected source status at mutation time. The bool
// result reports whether the row actually transitioned; false means the
// post was mutated concurrently (e.g. cancelled while publishing).
func (s *Store) TransitionScheduledPost(ctx context.Context, id string, from, to Status, fields TerminalFields) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $3,
		    publish_result = COALESCE($4, publish_result),
		    error = NULLIF($5, ''),
		    published_at = $6,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	var publishedAt interface{}
	if !fields.PublishedAt.IsZero() {
		publishedAt = fields.PublishedAt
	}
	var result interface{}
	if len(fields.PublishResult) > 0 {
		result = fields.PublishResult
	}
	res, err := s.db.ExecContext(ctx, query, id, string(from), string(to), result, fields.Error, publishedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CancelScheduledPost deletes a still-pending post owned by the user.
func (s *Store) CancelScheduledPost(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_posts WHERE id = $1 AND user_id = $2 AND status = $3`,
		id, userID, string(StatusPending))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// AppendNotification stores one notification row.
func (s *Store) AppendNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	links := n.PostLinks
	if len(links) == 0 {
		links = []byte("{}")
	}
	query := `
		INSERT INTO notifications (id, user_id, type, status, platforms, post_links, caption, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING created_at
	`
	return s.db.QueryRowContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Status, pq.Array(platformStrings(n.Platforms)),
		links, n.Caption, n.ImageURL,
	).Scan(&n.CreatedAt)
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, user_id, type, status, platforms, post_links, caption, COALESCE(image_url, ''), read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var notifications []Notification
	for rows.Next() {
		var (
			n         Notification
			platforms pq.StringArray
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Status, &platforms,
			&n.PostLinks, &n.Caption, &n.ImageURL, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Platforms = parsePlatforms(platforms)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags one notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func platformStrings(ps []platform.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func parsePlatforms(raw []string) []platform.Platform {
	out := make([]platform.Platform, 0, len(raw))
	for _, s := range raw {
		if p, err := platform.Parse(s); err == nil {
			out = append(out, p)
		}
	}
	return out
}
