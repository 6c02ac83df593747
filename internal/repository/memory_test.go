package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/atinyakov/GophAuth/internal/models"
)

func TestMemoryAccountStore_CreateAndFind(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()

	rec, err := store.CreateIfAbsent(ctx, newRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("ID = %d; want 1", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	byEmail, err := store.FindByEmail(ctx, "a@X.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if byEmail.ID != rec.ID {
		t.Errorf("FindByEmail ID = %d; want %d", byEmail.ID, rec.ID)
	}

	byName, err := store.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if byName.Identity.Username != "Alice" {
		t.Errorf("Username = %q; want %q", byName.Identity.Username, "Alice")
	}

	if _, err := store.FindByUsername(ctx, "Alice"); !errors.Is(err, models.ErrAccountNotFound) {
		t.Errorf("lookup must use the normalized key, got %v", err)
	}
}

func TestMemoryAccountStore_IDsAreMonotonic(t *testing.T) {
	store := NewMemoryAccountStore()
	var last int64
	for i := 0; i < 5; i++ {
		rec := newRecord()
		rec.Identity.NormalizedUsername = fmt.Sprintf("user%d", i)
		rec.Identity.Email = fmt.Sprintf("u%d@x.com", i)
		created, err := store.CreateIfAbsent(context.Background(), rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if created.ID <= last {
			t.Errorf("ID %d not greater than %d", created.ID, last)
		}
		last = created.ID
	}
}

func TestMemoryAccountStore_Conflict(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()
	if _, err := store.CreateIfAbsent(ctx, newRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name     string
		username string
		email    string
		want     []models.Field
	}{
		{"same email other case", "bob", "a@X.com", []models.Field{models.FieldEmail}},
		{"same username", "alice", "b@x.com", []models.Field{models.FieldUsername}},
		{"both", "alice", "A@x.com", []models.Field{models.FieldUsername, models.FieldEmail}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := newRecord()
			rec.Identity.NormalizedUsername = tc.username
			rec.Identity.Email = tc.email

			_, err := store.CreateIfAbsent(ctx, rec)
			var conflict *models.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			if fmt.Sprint(conflict.Fields) != fmt.Sprint(tc.want) {
				t.Errorf("Fields = %v; want %v", conflict.Fields, tc.want)
			}
		})
	}

	if store.Len() != 1 {
		t.Errorf("Len = %d; want 1", store.Len())
	}
}

func TestMemoryAccountStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryAccountStore()
	ctx := context.Background()
	in := newRecord()
	if _, err := store.CreateIfAbsent(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in.PasswordHash[0] = 'X'

	got, err := store.FindByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	got.PasswordHash[1] = 'Y'

	again, _ := store.FindByEmail(ctx, "a@x.com")
	if string(again.PasswordHash) != "$2a$04$hash" {
		t.Errorf("stored hash was mutated through a returned slice: %q", again.PasswordHash)
	}
}

func TestMemoryAccountStore_EmptyHash(t *testing.T) {
	store := NewMemoryAccountStore()
	rec := newRecord()
	rec.PasswordHash = []byte{}

	if _, err := store.CreateIfAbsent(context.Background(), rec); !errors.Is(err, ErrEmptyPasswordHash) {
		t.Errorf("expected ErrEmptyPasswordHash, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d; want 0", store.Len())
	}
}

func TestMemoryAccountStore_ConcurrentSameEmail(t *testing.T) {
	store := NewMemoryAccountStore()
	const n = 50

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := newRecord()
			rec.Identity.NormalizedUsername = fmt.Sprintf("user%d", i)
			_, err := store.CreateIfAbsent(context.Background(), rec)

			mu.Lock()
			defer mu.Unlock()
			var conflict *models.ConflictError
			switch {
			case err == nil:
				created++
			case errors.As(err, &conflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if created != 1 || conflicts != n-1 {
		t.Errorf("created = %d, conflicts = %d; want 1 and %d", created, conflicts, n-1)
	}
}
