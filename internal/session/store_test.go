package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasky/internal/service"
	"tasky/internal/session"
)

func TestStore_SetAndLogout(t *testing.T) {
	s := session.New()
	assert.False(t, s.Authenticated())

	s.SetSession("acc", "ref", &service.User{ID: "u1", Name: "Ada Lovelace", Email: "a@b.com"})
	assert.True(t, s.Authenticated())
	assert.Equal(t, "acc", s.AccessToken())
	assert.Equal(t, "ref", s.RefreshToken())
	require.NotNil(t, s.User())
	assert.Equal(t, "u1", s.User().ID)

	s.SetAccessToken("acc2")
	assert.Equal(t, "acc2", s.AccessToken())
	assert.Equal(t, "ref", s.RefreshToken())

	s.Logout()
	assert.Equal(t, "", s.AccessToken())
	assert.Equal(t, "", s.RefreshToken())
	assert.Nil(t, s.User())
	assert.True(t, s.Snapshot().Empty())
}

func TestStore_TokenExpiry(t *testing.T) {
	s := session.New()
	s.SetSession("acc", "ref", nil)
	assert.False(t, s.Expired(), "a token without expiry never expires")

	s.SetTokenExpiry(time.Now().Add(-time.Second))
	assert.True(t, s.Expired())
	assert.True(t, s.Authenticated(), "an expired token can still be refreshed")

	s.SetAccessToken("acc2")
	assert.False(t, s.Expired(), "a new token drops the old expiry")

	s.Logout()
	assert.False(t, s.Expired())
}

func TestExpiryIn(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, now.Add(90*time.Second), session.ExpiryIn(90, now))
	assert.True(t, session.ExpiryIn(0, now).IsZero())
	assert.True(t, session.ExpiryIn(-5, now).IsZero())
}

func TestStore_UserIsCopied(t *testing.T) {
	s := session.New()
	u := &service.User{ID: "u1", Name: "Ada"}
	s.SetUser(u)
	u.Name = "changed"

	assert.Equal(t, "Ada", s.User().Name)

	got := s.User()
	got.Name = "also changed"
	assert.Equal(t, "Ada", s.User().Name)
}

func TestFilePersister_RestoresAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first := session.Open(session.NewFilePersister(path), nil)
	first.SetSession("acc", "ref", &service.User{ID: "u1", Name: "Ada Lovelace", Email: "a@b.com"})
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	first.SetTokenExpiry(expiry)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second := session.Open(session.NewFilePersister(path), nil)
	assert.Equal(t, "acc", second.AccessToken())
	assert.Equal(t, "ref", second.RefreshToken())
	assert.Equal(t, first.User(), second.User())
	require.NotNil(t, second.Snapshot().Token)
	assert.True(t, expiry.Equal(second.Snapshot().Token.Expiry))
}

func TestFilePersister_LogoutRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := session.Open(session.NewFilePersister(path), nil)
	s.SetSession("acc", "ref", nil)

	s.Logout()

	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	restored := session.Open(session.NewFilePersister(path), nil)
	assert.False(t, restored.Authenticated())
}

func TestFilePersister_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := session.Open(session.NewFilePersister(path), nil)

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
}

type failingPersister struct{ saves int }

func (f *failingPersister) Load() (session.Snapshot, error) { return session.Snapshot{}, nil }
func (f *failingPersister) Save(session.Snapshot) error {
	f.saves++
	return errors.New("disk full")
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	p := &failingPersister{}
	s := session.Open(p, nil)

	s.SetAccessToken("acc")

	assert.Equal(t, "acc", s.AccessToken())
	assert.Equal(t, 1, p.saves)
}
