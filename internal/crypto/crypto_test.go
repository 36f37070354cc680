package crypto

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	key := GenerateAPIKey()

	if !strings.HasPrefix(key, "llm-gw-") {
		t.Errorf("expected llm-gw- prefix, got %q", key)
	}
	if len(key) <= len("llm-gw-") {
		t.Error("key must carry entropy beyond the prefix")
	}

	if GenerateAPIKey() == key {
		t.Error("consecutive keys must differ")
	}
}

func TestHashAPIKey(t *testing.T) {
	key := "llm-gw-example"

	a := HashAPIKey(key)
	b := HashAPIKey(key)
	if a != b {
		t.Error("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == key {
		t.Error("hash must not equal the plaintext")
	}
	if HashAPIKey("llm-gw-other") == a {
		t.Error("different keys must hash differently")
	}
}
