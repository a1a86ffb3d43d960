package repo_test

import (
	"testing"

	"github.com/hamed0406/uptimechecker/internal/repo"
	"github.com/hamed0406/uptimechecker/internal/repo/memory"
	pg "github.com/hamed0406/uptimechecker/internal/repo/postgres"
)

// Compile-time interface satisfaction checks, kept in an external test
// package to avoid an import cycle between repo and its adapters.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Store = memory.New()
	var _ repo.Store = (*pg.Store)(nil)
}

func TestStoreError_Message(t *testing.T) {
	se := &repo.StoreError{Kind: repo.Timeout, Op: "list_enabled_checks"}
	if se.Error() == "" {
		t.Fatalf("expected non-empty error message")
	}
}
