package auth

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newStore(t *testing.T, content string) (*TokenStore, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "control-tokens")
	writeTokenFile(t, file, content)

	store, err := NewTokenStore(file, 10*time.Millisecond, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return store, file
}

func TestParseTokensLabelsAndComments(t *testing.T) {
	tokens := parseTokens([]byte("# remote controls\nkitchen: k-123\n\n  bare-token  \n#disabled: old\nkitchen: k-123\nphone:p-9\n: weird\n"))

	want := []labelledToken{
		{label: "kitchen", value: []byte("k-123")},
		{label: "anonymous", value: []byte("bare-token")},
		{label: "phone", value: []byte("p-9")},
		{label: "anonymous", value: []byte(": weird")},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i].label != want[i].label || string(tokens[i].value) != string(want[i].value) {
			t.Fatalf("token %d = %s/%s, want %s/%s", i, tokens[i].label, tokens[i].value, want[i].label, want[i].value)
		}
	}
}

func TestAuthorizeReturnsLabel(t *testing.T) {
	store, _ := newStore(t, "kitchen: k-123\nplain\n")

	if label, ok := store.Authorize("k-123"); !ok || label != "kitchen" {
		t.Fatalf("Authorize(k-123) = %q, %t", label, ok)
	}
	if label, ok := store.Authorize(" plain "); !ok || label != "anonymous" {
		t.Fatalf("Authorize(plain) = %q, %t", label, ok)
	}
	if _, ok := store.Authorize("kitchen"); ok {
		t.Fatalf("a label must not be accepted as a token")
	}
	if _, ok := store.Authorize(""); ok {
		t.Fatalf("empty token must be rejected")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 tokens, got %d", store.Len())
	}
}

func TestTokenStoreReloadsOnChange(t *testing.T) {
	store, file := newStore(t, "alpha\n")

	if _, ok := store.Authorize("beta"); ok {
		t.Fatalf("unexpected token accepted")
	}

	writeTokenFile(t, file, "alpha\n\n desk: beta \n")
	waitForToken(t, store, "beta", true)

	writeTokenFile(t, file, "desk: beta\n")
	waitForToken(t, store, "alpha", false)
}

func TestTokenStoreHandlesFileRemoval(t *testing.T) {
	store, file := newStore(t, "alpha\n")

	if err := os.Remove(file); err != nil {
		t.Fatalf("remove token file: %v", err)
	}
	waitForToken(t, store, "alpha", false)

	writeTokenFile(t, file, "gamma\n")
	waitForToken(t, store, "gamma", true)
}

func TestTokenStoreIgnoresSiblingFiles(t *testing.T) {
	store, file := newStore(t, "alpha\n")

	sibling := filepath.Join(filepath.Dir(file), "other")
	if err := os.WriteFile(sibling, []byte("noise"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, ok := store.Authorize("alpha"); !ok {
		t.Fatalf("expected alpha to remain valid after a sibling write")
	}
	if _, ok := store.Authorize("noise"); ok {
		t.Fatalf("sibling content must not become a token")
	}
}

func TestTokenStoreCommentOnlyFile(t *testing.T) {
	store, _ := newStore(t, "# nothing here yet\n")
	if store.Len() != 0 {
		t.Fatalf("expected no tokens, got %d", store.Len())
	}
}

func TestTokenStoreConcurrentAuthorize(t *testing.T) {
	store, file := newStore(t, "alpha\nbeta\n")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.Authorize("alpha")
				store.Authorize("beta")
				store.Authorize("invalid")
			}
		}()
	}

	writeTokenFile(t, file, "alpha\nbeta\ngamma\n")
	time.Sleep(50 * time.Millisecond)
	writeTokenFile(t, file, "alpha\n")

	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tokens")
	writeTokenFile(t, file, "alpha\n")

	store, err := NewTokenStore(file, time.Millisecond, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func writeTokenFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir token dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
}

func waitForToken(t *testing.T, store *TokenStore, token string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Authorize(token); ok == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for token %s to reach state %v", token, want)
}
