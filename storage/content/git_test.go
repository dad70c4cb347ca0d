package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	git "github.com/go-git/go-git/v6"
	gogitcfg "github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	appconfig "github.com/indieinfra/mediadrop/config"
)

func newTestGitStore(t *testing.T) (*GitRegistrar, string) {
	t.Helper()

	repoPath := setupRemoteRepo(t)

	cfg := &appconfig.GitContentStrategy{
		Repository: repoPath,
		Path:       "assets",
		Auth:       appconfig.GitContentStrategyAuth{Method: "none"},
	}

	store, err := NewGitRegistrar(cfg)
	if err != nil {
		t.Fatalf("failed to create git registrar: %v", err)
	}
	store.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	t.Cleanup(func() {
		_ = store.Cleanup()
	})

	return store, repoPath
}

func setupRemoteRepo(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	workDir := filepath.Join(base, "work")
	bareDir := filepath.Join(base, "remote.git")

	for _, dir := range []string{workDir, bareDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	bareRepo, err := git.PlainInit(bareDir, true)
	if err != nil {
		t.Fatalf("failed to init bare repo: %v", err)
	}

	workRepo, err := git.PlainInit(workDir, false)
	if err != nil {
		t.Fatalf("failed to init work repo: %v", err)
	}

	wt, err := workRepo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	if err := os.WriteFile(filepath.Join(workDir, "README.md"), []byte("init\n"), 0644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("failed to add seed file: %v", err)
	}

	commitHash, err := wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit seed: %v", err)
	}

	mainRef := plumbing.NewBranchReferenceName("main")
	if err := workRepo.Storer.SetReference(plumbing.NewHashReference(mainRef, commitHash)); err != nil {
		t.Fatalf("failed to create main reference: %v", err)
	}
	if err := workRepo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, mainRef)); err != nil {
		t.Fatalf("failed to move HEAD to main: %v", err)
	}

	if _, err := workRepo.CreateRemote(&gogitcfg.RemoteConfig{Name: "origin", URLs: []string{bareDir}}); err != nil {
		t.Fatalf("failed to create remote: %v", err)
	}

	if err := workRepo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []gogitcfg.RefSpec{"refs/heads/main:refs/heads/main"}}); err != nil {
		t.Fatalf("failed to push seed commit: %v", err)
	}

	if err := bareRepo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, mainRef)); err != nil {
		t.Fatalf("failed to set bare head: %v", err)
	}

	return bareDir
}

func TestGitRegistrar_RegisterAndGet(t *testing.T) {
	store, _ := newTestGitStore(t)
	ctx := context.Background()

	rec, err := store.Register(ctx, sampleRegistration())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if got.ID != rec.ID || got.Title != "interview" || got.Vendor.URL != rec.Vendor.URL {
		t.Fatalf("record mismatch: got %+v", got)
	}
	if got.Metadata == nil || got.Metadata.Dimensions == nil || got.Metadata.Dimensions.Height != 360 {
		t.Fatalf("metadata lost: %+v", got.Metadata)
	}
}

func TestGitRegistrar_VisibleToSecondClone(t *testing.T) {
	store, remote := newTestGitStore(t)
	ctx := context.Background()

	rec, err := store.Register(ctx, sampleRegistration())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	other, err := NewGitRegistrar(&appconfig.GitContentStrategy{
		Repository: remote,
		Path:       "assets",
		Auth:       appconfig.GitContentStrategyAuth{Method: "none"},
	})
	if err != nil {
		t.Fatalf("second registrar: %v", err)
	}
	t.Cleanup(func() { _ = other.Cleanup() })

	if _, err := other.Get(ctx, rec.ID); err != nil {
		t.Fatalf("expected record pushed to remote, got %v", err)
	}

	if err := other.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete through second clone failed: %v", err)
	}

	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected first clone to observe deletion after sync, got %v", err)
	}
}

func TestGitRegistrar_Delete(t *testing.T) {
	store, _ := newTestGitStore(t)
	ctx := context.Background()

	rec, err := store.Register(ctx, sampleRegistration())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestGitRegistrar_NotFound(t *testing.T) {
	store, _ := newTestGitStore(t)

	if _, err := store.Get(context.Background(), "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGitRegistrar_BadRepository(t *testing.T) {
	_, err := NewGitRegistrar(&appconfig.GitContentStrategy{
		Repository: filepath.Join(t.TempDir(), "missing.git"),
		Path:       "assets",
		Auth:       appconfig.GitContentStrategyAuth{Method: "none"},
	})
	if err == nil {
		t.Fatalf("expected clone failure for missing repository")
	}
}

func TestBuildGitAuth(t *testing.T) {
	if auth, err := buildGitAuth(&appconfig.GitContentStrategy{Auth: appconfig.GitContentStrategyAuth{Method: "none"}}); err != nil || auth != nil {
		t.Fatalf("expected no auth, got %v (%v)", auth, err)
	}

	auth, err := buildGitAuth(&appconfig.GitContentStrategy{Auth: appconfig.GitContentStrategyAuth{
		Method: "plain",
		Plain:  &appconfig.UsernamePasswordAuth{Username: "u", Password: "p"},
	}})
	if err != nil || auth == nil {
		t.Fatalf("expected basic auth, got %v (%v)", auth, err)
	}

	if _, err := buildGitAuth(&appconfig.GitContentStrategy{Auth: appconfig.GitContentStrategyAuth{Method: "plain"}}); err == nil {
		t.Fatalf("expected error for plain auth without credentials")
	}

	if _, err := buildGitAuth(&appconfig.GitContentStrategy{Auth: appconfig.GitContentStrategyAuth{Method: "kerberos"}}); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}
