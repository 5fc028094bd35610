package auth

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowAll(t *testing.T) {
	var checker CredentialChecker = AllowAll{}
	assert.True(t, checker.Check("anyone", ""))
	assert.True(t, checker.Check("", "whatever"))
}

func TestSharedSecret(t *testing.T) {
	checker := SharedSecret{Password: "hunter2"}
	assert.True(t, checker.Check("alice", "hunter2"))
	assert.True(t, checker.Check("bob", "hunter2"))
	assert.False(t, checker.Check("alice", "wrong"))
	assert.False(t, checker.Check("alice", ""))
}

func TestServiceLoginFlow(t *testing.T) {
	open := NewService(AllowAll{}, true)
	assert.True(t, open.BeginLogin("guest"), "passwordless policy admits on USER")

	secret := NewService(SharedSecret{Password: "s3cret"}, false)
	assert.False(t, secret.BeginLogin("guest"), "secret policy must wait for PASS")
	assert.True(t, secret.CompleteLogin("guest", "s3cret"))
	assert.False(t, secret.CompleteLogin("guest", "nope"))
}

func TestUserStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, WriteUserFile(path, map[string]string{
		"alice": "wonderland",
		"bob":   "builder",
	}))

	store, err := NewUserStore(path, slog.Default())
	require.NoError(t, err)

	assert.True(t, store.Check("alice", "wonderland"))
	assert.True(t, store.Check("bob", "builder"))
	assert.False(t, store.Check("alice", "builder"))
	assert.False(t, store.Check("mallory", "wonderland"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, store.Usernames())
}

func TestUserStoreMissingFile(t *testing.T) {
	_, err := NewUserStore(filepath.Join(t.TempDir(), "absent.json"), slog.Default())
	assert.Error(t, err)
}

func TestUserStoreWatchReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, WriteUserFile(path, map[string]string{"alice": "one"}))

	store, err := NewUserStore(path, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Watch(ctx))

	require.NoError(t, WriteUserFile(path, map[string]string{"alice": "two"}))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Check("alice", "two") {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("users file change was not picked up")
}
