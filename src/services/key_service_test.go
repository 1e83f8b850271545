package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nirman-dev/llm-keys/src/models"
	"github.com/nirman-dev/llm-keys/src/repositories/mock"
)

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestKeyService_CreateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("creates key with defaults", func(t *testing.T) {
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), nil, nil)

		created, err := service.CreateKey(ctx, "user-1", "  ", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(created.Key, models.KeyPrefix) {
			t.Errorf("expected key with prefix %s, got %s", models.KeyPrefix, created.Key)
		}
		if created.Warning != OneTimeKeyWarning {
			t.Errorf("expected warning %q, got %q", OneTimeKeyWarning, created.Warning)
		}

		stored := store.get(created.KeyID)
		if stored.Name != models.DefaultKeyName {
			t.Errorf("expected name %q, got %q", models.DefaultKeyName, stored.Name)
		}
		if stored.CreditsBalance != 0 {
			t.Errorf("expected zero balance, got %v", stored.CreditsBalance)
		}
		if len(stored.AllowedProviders) != len(models.DefaultProviders) {
			t.Errorf("expected %d default providers, got %v", len(models.DefaultProviders), stored.AllowedProviders)
		}
		if stored.RateLimitPerMinute != 60 || stored.RateLimitPerDay != 10000 {
			t.Errorf("unexpected rate limits %d/%d", stored.RateLimitPerMinute, stored.RateLimitPerDay)
		}
		if stored.Fingerprint != KeyFingerprint(created.Key) {
			t.Error("expected stored fingerprint to match the issued secret")
		}
		if stored.State != models.KeyStateActive || !stored.IsActive {
			t.Error("expected new key to be active")
		}
	})

	t.Run("sixth key exceeds quota", func(t *testing.T) {
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), nil, nil)

		var first uuid.UUID
		for i := 0; i < models.MaxKeysPerUser; i++ {
			created, err := service.CreateKey(ctx, "user-1", "", nil)
			if err != nil {
				t.Fatalf("create %d: expected no error, got %v", i+1, err)
			}
			if i == 0 {
				first = created.KeyID
			}
		}

		_, err := service.CreateKey(ctx, "user-1", "", nil)
		if !errors.Is(err, ErrKeyQuotaExceeded) {
			t.Fatalf("expected ErrKeyQuotaExceeded, got %v", err)
		}

		// other users are unaffected
		if _, err := service.CreateKey(ctx, "user-2", "", nil); err != nil {
			t.Fatalf("expected no error for another user, got %v", err)
		}

		// deleted keys free a slot
		if err := service.DeleteKey(ctx, first, "user-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := service.CreateKey(ctx, "user-1", "", nil); err != nil {
			t.Fatalf("expected slot after delete, got %v", err)
		}
	})

	t.Run("rejects unknown provider before storing", func(t *testing.T) {
		repo := mock.NewKeyRepository()
		service := NewKeyService(repo, nil, nil)

		_, err := service.CreateKey(ctx, "user-1", "x", []string{"openai", "acme"})
		if !errors.Is(err, ErrInvalidProvider) {
			t.Fatalf("expected ErrInvalidProvider, got %v", err)
		}
		if len(repo.Calls["Create"]) != 0 {
			t.Errorf("expected no Create call, got %d", len(repo.Calls["Create"]))
		}
	})

	t.Run("wraps repository failure", func(t *testing.T) {
		repo := mock.NewKeyRepository()
		repo.CreateFunc = func(ctx context.Context, key *models.LLMKey, maxKeys int) error {
			return errors.New("database error")
		}
		service := NewKeyService(repo, nil, nil)

		_, err := service.CreateKey(ctx, "user-1", "", nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if errors.Is(err, ErrKeyQuotaExceeded) {
			t.Error("expected generic error, got quota error")
		}
	})

	t.Run("stores sealed secret when encryption is enabled", func(t *testing.T) {
		enc, err := NewEncryptor(testEncryptionKey)
		if err != nil {
			t.Fatalf("failed to create encryptor: %v", err)
		}
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), enc, nil)

		created, err := service.CreateKey(ctx, "user-1", "Work", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored := store.get(created.KeyID)
		if !strings.HasPrefix(stored.Secret, encryptedPrefix) {
			t.Errorf("expected sealed secret, got %q", stored.Secret)
		}

		resp, err := service.GetKey(ctx, created.KeyID, "user-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.KeyPreview != KeyPreview(created.Key) {
			t.Errorf("expected preview %q, got %q", KeyPreview(created.Key), resp.KeyPreview)
		}
	})
}

func TestKeyService_ReadsNeverExposeSecret(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	service := NewKeyService(store.keyRepo(), nil, nil)

	created, err := service.CreateKey(ctx, "user-1", "Main", []string{"openai"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	list, err := service.ListKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 key, got %d", len(list))
	}

	got, err := service.GetKey(ctx, created.KeyID, "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, resp := range []models.KeyResponse{list[0], *got} {
		if resp.KeyPreview == created.Key {
			t.Error("preview must not equal the secret")
		}
		if resp.KeyPreview != KeyPreview(created.Key) {
			t.Errorf("expected preview %q, got %q", KeyPreview(created.Key), resp.KeyPreview)
		}
		body, _ := json.Marshal(resp)
		if strings.Contains(string(body), created.Key) {
			t.Error("serialized key must not contain the secret")
		}
	}
}

func TestKeyService_GetKey(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	service := NewKeyService(store.keyRepo(), nil, nil)
	key, _ := store.seedKey("owner", 3.5)

	t.Run("returns owned key", func(t *testing.T) {
		resp, err := service.GetKey(ctx, key.ID, "owner")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.CreditsBalance != 3.5 {
			t.Errorf("expected balance 3.5, got %v", resp.CreditsBalance)
		}
		if resp.UserID != "owner" || resp.State != models.KeyStateActive {
			t.Errorf("expected owner and active state, got %q/%q", resp.UserID, resp.State)
		}
	})

	t.Run("foreign key is not found", func(t *testing.T) {
		_, err := service.GetKey(ctx, key.ID, "intruder")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		_, err := service.GetKey(ctx, uuid.New(), "owner")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestKeyService_UpdateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("writes only present fields", func(t *testing.T) {
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), nil, nil)
		key, _ := store.seedKey("user-1", 0)

		name := "Renamed"
		active := false
		err := service.UpdateKey(ctx, key.ID, "user-1", models.KeyUpdate{Name: &name, IsActive: &active})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		stored := store.get(key.ID)
		if stored.Name != "Renamed" || stored.IsActive {
			t.Errorf("expected renamed inactive key, got %q active=%v", stored.Name, stored.IsActive)
		}
		if stored.RateLimitPerMinute != key.RateLimitPerMinute {
			t.Error("expected rate limit to be untouched")
		}
		if len(stored.AllowedProviders) != len(key.AllowedProviders) {
			t.Error("expected providers to be untouched")
		}
		if stored.UpdatedAt == nil {
			t.Error("expected updated_at to be set")
		}
	})

	t.Run("empty update succeeds without write", func(t *testing.T) {
		store := newMemoryStore()
		repo := store.keyRepo()
		service := NewKeyService(repo, nil, nil)
		key, _ := store.seedKey("user-1", 0)

		if err := service.UpdateKey(ctx, key.ID, "user-1", models.KeyUpdate{}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.Calls["UpdateSettings"]) != 0 {
			t.Errorf("expected no UpdateSettings call, got %d", len(repo.Calls["UpdateSettings"]))
		}
	})

	t.Run("empty update of unknown key is not found", func(t *testing.T) {
		service := NewKeyService(mock.NewKeyRepository(), nil, nil)

		err := service.UpdateKey(ctx, uuid.New(), "user-1", models.KeyUpdate{})
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("partial updates of different fields both survive", func(t *testing.T) {
		store := newMemoryStore()
		repo := store.keyRepo()
		service := NewKeyService(repo, nil, nil)
		key, _ := store.seedKey("user-1", 0)

		name := "Renamed"
		active := false
		updates := []models.KeyUpdate{{Name: &name}, {IsActive: &active}}

		var wg sync.WaitGroup
		errs := make(chan error, len(updates))
		for _, upd := range updates {
			wg.Add(1)
			go func(upd models.KeyUpdate) {
				defer wg.Done()
				errs <- service.UpdateKey(ctx, key.ID, "user-1", upd)
			}(upd)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		stored := store.get(key.ID)
		if stored.Name != "Renamed" || stored.IsActive {
			t.Errorf("expected both fields applied, got name=%q active=%v", stored.Name, stored.IsActive)
		}
	})

	t.Run("store receives only the present fields", func(t *testing.T) {
		repo := mock.NewKeyRepository()
		service := NewKeyService(repo, nil, nil)
		keyID := uuid.New()
		name := "Renamed"

		if err := service.UpdateKey(ctx, keyID, "user-1", models.KeyUpdate{Name: &name}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(repo.Calls["GetByID"]) != 0 {
			t.Errorf("expected no read before the write, got %d", len(repo.Calls["GetByID"]))
		}
		if len(repo.Calls["UpdateSettings"]) != 1 {
			t.Fatalf("expected one UpdateSettings call, got %d", len(repo.Calls["UpdateSettings"]))
		}
		args := repo.Calls["UpdateSettings"][0].([]interface{})
		upd := args[2].(models.KeyUpdate)
		if upd.Name == nil || *upd.Name != "Renamed" {
			t.Errorf("expected name in update, got %+v", upd)
		}
		if upd.IsActive != nil || upd.RateLimitPerMinute != nil || upd.RateLimitPerDay != nil || upd.AllowedProviders != nil {
			t.Errorf("expected absent fields to stay nil, got %+v", upd)
		}
	})

	t.Run("update of unknown key is not found", func(t *testing.T) {
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), nil, nil)
		name := "Renamed"

		err := service.UpdateKey(ctx, uuid.New(), "user-1", models.KeyUpdate{Name: &name})
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("validates rate limits and providers", func(t *testing.T) {
		repo := mock.NewKeyRepository()
		service := NewKeyService(repo, nil, nil)
		zero := 0
		unknown := []string{"acme"}

		tests := []struct {
			name string
			upd  models.KeyUpdate
			want error
		}{
			{"per minute", models.KeyUpdate{RateLimitPerMinute: &zero}, ErrInvalidRateLimit},
			{"per day", models.KeyUpdate{RateLimitPerDay: &zero}, ErrInvalidRateLimit},
			{"providers", models.KeyUpdate{AllowedProviders: &unknown}, ErrInvalidProvider},
		}
		for _, tt := range tests {
			err := service.UpdateKey(ctx, uuid.New(), "user-1", tt.upd)
			if !errors.Is(err, tt.want) {
				t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
			}
		}
		if len(repo.Calls["GetByID"]) != 0 || len(repo.Calls["UpdateSettings"]) != 0 {
			t.Errorf("expected validation before any store call, got %d lookups", len(repo.Calls["GetByID"]))
		}
	})
}

func TestKeyService_DeleteKey(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	service := NewKeyService(store.keyRepo(), nil, nil)
	key, _ := store.seedKey("user-1", 2)

	if err := service.DeleteKey(ctx, key.ID, "user-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	firstDeletedAt := store.get(key.ID).DeletedAt

	t.Run("deleted key is not found", func(t *testing.T) {
		_, err := service.GetKey(ctx, key.ID, "user-1")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("deleted key is not listed", func(t *testing.T) {
		list, err := service.ListKeys(ctx, "user-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected empty list, got %d keys", len(list))
		}
	})

	t.Run("second delete succeeds and keeps timestamp", func(t *testing.T) {
		if err := service.DeleteKey(ctx, key.ID, "user-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored := store.get(key.ID)
		if stored.DeletedAt == nil || !stored.DeletedAt.Equal(*firstDeletedAt) {
			t.Error("expected deleted_at from the first deletion")
		}
		if stored.IsActive {
			t.Error("expected deleted key to be inactive")
		}
		if stored.CreditsBalance != 2 {
			t.Error("expected record to be retained with its balance")
		}
	})

	t.Run("foreign key is not found", func(t *testing.T) {
		other, _ := store.seedKey("user-2", 0)
		err := service.DeleteKey(ctx, other.ID, "user-1")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
		if store.get(other.ID).IsDeleted() {
			t.Error("foreign key must not be deleted")
		}
	})
}

func TestKeyService_RegenerateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces secret and keeps balances", func(t *testing.T) {
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), nil, nil)
		key, oldSecret := store.seedKey("user-1", 7.25)
		store.mu.Lock()
		store.keys[key.ID].CreditsUsed = 1.5
		store.keys[key.ID].TotalRequests = 12
		store.mu.Unlock()

		regenerated, err := service.RegenerateKey(ctx, key.ID, "user-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if regenerated.Key == oldSecret {
			t.Error("expected a new secret")
		}

		stored := store.get(key.ID)
		if stored.CreditsBalance != 7.25 || stored.CreditsUsed != 1.5 || stored.TotalRequests != 12 {
			t.Errorf("expected counters unchanged, got %v/%v/%d", stored.CreditsBalance, stored.CreditsUsed, stored.TotalRequests)
		}
		if stored.Fingerprint != KeyFingerprint(regenerated.Key) {
			t.Error("expected fingerprint of the new secret")
		}
		if stored.RegeneratedAt == nil {
			t.Error("expected regenerated_at to be set")
		}
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		store := newMemoryStore()
		service := NewKeyService(store.keyRepo(), nil, nil)

		_, err := service.RegenerateKey(ctx, uuid.New(), "user-1")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound, got %v", err)
		}
	})
}
