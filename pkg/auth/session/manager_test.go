package session

import (
	"context"
	"errors"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", redislib.Nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) AccessSessionKey(accessID string) string { return "session:" + accessID }

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}, store
}

func TestGenerateStoresToken(t *testing.T) {
	m, store := newTestManager()
	token, err := m.Generate(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if store.values["session:access-1"] != token {
		t.Fatal("token not persisted under the session key")
	}
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	m, store := newTestManager()
	token, err := m.Generate(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newID, newToken, err := m.Rotate(context.Background(), "access-1", token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, ok := store.values["session:access-1"]; ok {
		t.Fatal("old session should be deleted")
	}
	if store.values["session:"+newID] != newToken {
		t.Fatal("new session missing")
	}
}

func TestRotateRejectsWrongToken(t *testing.T) {
	m, _ := newTestManager()
	if _, err := m.Generate(context.Background(), "access-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	_, _, err := m.Rotate(context.Background(), "access-1", "forged")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("err = %v", err)
	}
}

func TestHasSession(t *testing.T) {
	m, _ := newTestManager()
	ok, err := m.HasSession(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if _, err := m.Generate(context.Background(), "access-1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	ok, err = m.HasSession(context.Background(), "access-1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}
