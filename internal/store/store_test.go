package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"postdeck/internal/platform"
	fieldcrypt "postdeck/pkg/crypto"
)

func newMockStore(t *testing.T, enc *fieldcrypt.FieldEncryptor) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, enc), mock
}

func testEncryptor(t *testing.T) *fieldcrypt.FieldEncryptor {
	t.Helper()
	enc, err := fieldcrypt.DeriveFieldEncryptor([]byte("unit-test-master-secret"), "credentials")
	require.NoError(t, err)
	return enc
}

func TestGetCredential(t *testing.T) {
	s, mock := newMockStore(t, nil)

	expires := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"access_token", "access_token_secret", "page_id", "expires_at"}).
		AddRow("tok", "sec", "page-9", expires)
	mock.ExpectQuery("SELECT access_token, access_token_secret, page_id, expires_at").
		WithArgs("u1", "facebook").
		WillReturnRows(rows)

	cred, err := s.GetCredential(context.Background(), "u1", platform.Facebook)
	require.NoError(t, err)
	require.Equal(t, platform.Facebook, cred.Platform)
	require.Equal(t, "tok", cred.AccessToken)
	require.Equal(t, "sec", cred.AccessTokenSecret)
	require.Equal(t, "page-9", cred.PageID)
	require.Equal(t, expires, cred.ExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCredentialNotFound(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectQuery("SELECT access_token").
		WithArgs("u1", "twitter").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "access_token_secret", "page_id", "expires_at"}))

	_, err := s.GetCredential(context.Background(), "u1", platform.Twitter)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialRoundTripEncrypted(t *testing.T) {
	enc := testEncryptor(t)
	s, mock := newMockStore(t, enc)

	var storedToken, storedSecret string
	mock.ExpectExec("INSERT INTO credentials").
		WithArgs("u1", "twitter", sqlmock.AnyArg(), sqlmock.AnyArg(), "", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SetCredential(context.Background(), "u1", platform.Credential{
		Platform:          platform.Twitter,
		AccessToken:       "plain-token",
		AccessTokenSecret: "plain-secret",
	})
	require.NoError(t, err)

	// What lands in the database must be ciphertext, not the raw token.
	storedToken, err = s.encryptField("plain-token")
	require.NoError(t, err)
	require.NotEqual(t, "plain-token", storedToken)
	storedSecret, err = s.encryptField("plain-secret")
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"access_token", "access_token_secret", "page_id", "expires_at"}).
		AddRow(storedToken, storedSecret, nil, nil)
	mock.ExpectQuery("SELECT access_token").
		WithArgs("u1", "twitter").
		WillReturnRows(rows)

	cred, err := s.GetCredential(context.Background(), "u1", platform.Twitter)
	require.NoError(t, err)
	require.Equal(t, "plain-token", cred.AccessToken)
	require.Equal(t, "plain-secret", cred.AccessTokenSecret)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertScheduledPost(t *testing.T) {
	s, mock := newMockStore(t, nil)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO scheduled_posts").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	post := &ScheduledPost{
		UserID:      "u1",
		Platforms:   []platform.Platform{platform.Twitter, platform.LinkedIn},
		Content:     "hello",
		ScheduledAt: now.Add(time.Hour),
	}
	require.NoError(t, s.InsertScheduledPost(context.Background(), post))
	require.NotEmpty(t, post.ID)
	require.Equal(t, StatusPending, post.Status)
	require.Equal(t, now, post.CreatedAt)
}

func TestListScheduledPostsByStatus(t *testing.T) {
	s, mock := newMockStore(t, nil)

	scheduledAt := time.Now().Add(-time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "platforms", "content", "media_url", "scheduled_at", "status",
		"publish_result", "error", "published_at", "created_at", "updated_at",
	}).AddRow("p1", "u1", "{twitter,instagram}", "due", "", scheduledAt, "pending",
		[]byte("null"), "", nil, time.Now(), time.Now())

	mock.ExpectQuery("FROM scheduled_posts").
		WithArgs("pending").
		WillReturnRows(rows)

	posts, err := s.ListScheduledPostsByStatus(context.Background(), StatusPending)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, []platform.Platform{platform.Twitter, platform.Instagram}, posts[0].Platforms)
	require.Equal(t, StatusPending, posts[0].Status)
	require.False(t, posts[0].PublishedAt.Valid)
}

func TestTransitionScheduledPost(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectExec("UPDATE scheduled_posts").
		WithArgs("p1", "pending", "published", []byte(`{"success":true}`), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	transitioned, err := s.TransitionScheduledPost(context.Background(), "p1", StatusPending, StatusPublished, TerminalFields{
		PublishResult: []byte(`{"success":true}`),
		PublishedAt:   time.Now(),
	})
	require.NoError(t, err)
	require.True(t, transitioned)
}

func TestTransitionScheduledPostAlreadyMoved(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectExec("UPDATE scheduled_posts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	transitioned, err := s.TransitionScheduledPost(context.Background(), "p1", StatusPending, StatusFailed, TerminalFields{Error: "boom"})
	require.NoError(t, err)
	require.False(t, transitioned, "concurrently mutated post must not transition")
}

func TestCancelScheduledPost(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectExec("DELETE FROM scheduled_posts").
		WithArgs("p1", "u1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cancelled, err := s.CancelScheduledPost(context.Background(), "p1", "u1")
	require.NoError(t, err)
	require.True(t, cancelled)

	mock.ExpectExec("DELETE FROM scheduled_posts").
		WithArgs("p2", "u1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	cancelled, err = s.CancelScheduledPost(context.Background(), "p2", "u1")
	require.NoError(t, err)
	require.False(t, cancelled)
}

func TestAppendNotification(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	n := &Notification{
		UserID:    "u1",
		Type:      "publish",
		Status:    "partial",
		Platforms: []platform.Platform{platform.Twitter},
		PostLinks: []byte(`{"twitter":"https://t/1"}`),
		Caption:   "hello",
	}
	require.NoError(t, s.AppendNotification(context.Background(), n))
	require.NotEmpty(t, n.ID)
}

func TestMarkNotificationRead(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectExec("UPDATE notifications SET read").
		WithArgs("n1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	marked, err := s.MarkNotificationRead(context.Background(), "n1", "u1")
	require.NoError(t, err)
	require.True(t, marked)
}
