package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v6"
	gitconfig "github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"

	"github.com/indieinfra/mediadrop/config"
)

const (
	defaultGitBranch = "main"
	gitSyncAttempts  = 3
)

// GitRegistrar commits one JSON document per asset to a git repository.
type GitRegistrar struct {
	cfg        *config.GitContentStrategy
	auth       transport.AuthMethod
	branch     string
	repo       *git.Repository
	tmpDir     string
	mu         sync.Mutex
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewGitRegistrar(cfg *config.GitContentStrategy) (*GitRegistrar, error) {
	if cfg == nil {
		return nil, fmt.Errorf("git content config is nil")
	}

	auth, err := buildGitAuth(cfg)
	if err != nil {
		return nil, err
	}

	branch := strings.TrimSpace(cfg.Branch)
	if branch == "" {
		branch = defaultGitBranch
	}

	r := &GitRegistrar{
		cfg:    cfg,
		auth:   auth,
		branch: branch,
		now:    time.Now,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(backoff.WithInitialInterval(250*time.Millisecond), backoff.WithMaxElapsedTime(15*time.Second))
		},
	}

	if err := r.clone(); err != nil {
		return nil, err
	}

	return r, nil
}

func buildGitAuth(cfg *config.GitContentStrategy) (transport.AuthMethod, error) {
	switch cfg.Auth.Method {
	case "", "none":
		return nil, nil
	case "plain":
		if cfg.Auth.Plain == nil {
			return nil, fmt.Errorf("plain git authentication requires credentials")
		}
		return &http.BasicAuth{
			Username: cfg.Auth.Plain.Username,
			Password: cfg.Auth.Plain.Password,
		}, nil
	case "ssh":
		if cfg.Auth.Ssh == nil {
			return nil, fmt.Errorf("ssh git authentication requires a key")
		}
		pubkeys, err := ssh.NewPublicKeysFromFile(cfg.Auth.Ssh.Username, cfg.Auth.Ssh.PrivateKeyFilePath, cfg.Auth.Ssh.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare content git ssh authentication: %w", err)
		}
		return pubkeys, nil
	default:
		return nil, fmt.Errorf("invalid git authentication method %v", cfg.Auth.Method)
	}
}

func (r *GitRegistrar) clone() error {
	tmpDir, err := os.MkdirTemp("", "mediadrop-*")
	if err != nil {
		return err
	}

	repo, err := git.PlainClone(tmpDir, &git.CloneOptions{
		URL:           r.cfg.Repository,
		Auth:          r.auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.branch),
		SingleBranch:  true,
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return fmt.Errorf("failed to clone content repository: %w", err)
	}

	if r.tmpDir != "" {
		_ = os.RemoveAll(r.tmpDir)
	}
	r.tmpDir = tmpDir
	r.repo = repo

	return nil
}

// Cleanup removes the local clone. Call it on shutdown.
func (r *GitRegistrar) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tmpDir == "" {
		return nil
	}

	if err := os.RemoveAll(r.tmpDir); err != nil {
		return fmt.Errorf("failed to cleanup git content store: %w", err)
	}

	r.tmpDir = ""
	return nil
}

// sync fast-forwards the local branch to the remote one, recloning between failed attempts.
func (r *GitRegistrar) sync(ctx context.Context) error {
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), gitSyncAttempts-1), ctx)

	err := backoff.Retry(func() error {
		if err := r.fetchAndFastForward(ctx); err != nil {
			if cloneErr := r.clone(); cloneErr != nil {
				return errors.Join(err, cloneErr)
			}
			return err
		}
		return nil
	}, b)
	if err != nil {
		return fmt.Errorf("could not fetch + fastforward after %d attempts: %w", gitSyncAttempts, err)
	}

	return nil
}

func (r *GitRegistrar) fetchAndFastForward(ctx context.Context) error {
	if err := r.repo.FetchContext(ctx, &git.FetchOptions{Auth: r.auth}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName("origin", r.branch), true)
	if err != nil {
		return err
	}

	localName := plumbing.NewBranchReferenceName(r.branch)
	localRef, err := r.repo.Reference(localName, true)
	if err != nil {
		return err
	}

	if localRef.Hash() == remoteRef.Hash() {
		return nil
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(localName, remoteRef.Hash())); err != nil {
		return err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}

	return wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteRef.Hash()})
}

func (r *GitRegistrar) relPath(id string) string {
	return path.Join(filepath.ToSlash(r.cfg.Path), id+".json")
}

func (r *GitRegistrar) Register(ctx context.Context, reg *Registration) (*Record, error) {
	rec, err := NewRecord(reg, r.now())
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sync(ctx); err != nil {
		return nil, fmt.Errorf("failed to update repo from remote: %w", err)
	}

	rel := r.relPath(rec.ID)
	fullPath := filepath.Join(r.tmpDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create required directory structure: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	if _, err := wt.Add(rel); err != nil {
		return nil, fmt.Errorf("failed to add file to git: %w", err)
	}

	if err := r.commitAndPush(ctx, wt, fmt.Sprintf("mediadrop(add): register asset %s (%s)", rec.ID, rec.Title)); err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *GitRegistrar) Get(ctx context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sync(ctx); err != nil {
		return nil, fmt.Errorf("failed to update repo from remote: %w", err)
	}

	return r.readRecord(id)
}

func (r *GitRegistrar) readRecord(id string) (*Record, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(r.branch), true)
	if err != nil {
		return nil, err
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	file, err := tree.File(r.relPath(id))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rd, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid asset document %s: %w", id, err)
	}

	return &rec, nil
}

func (r *GitRegistrar) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sync(ctx); err != nil {
		return fmt.Errorf("failed to update repo from remote: %w", err)
	}

	if _, err := r.readRecord(id); err != nil {
		return err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if _, err := wt.Remove(r.relPath(id)); err != nil {
		return fmt.Errorf("failed to remove file from git: %w", err)
	}

	return r.commitAndPush(ctx, wt, fmt.Sprintf("mediadrop(delete): remove asset %s", id))
}

func (r *GitRegistrar) commitAndPush(ctx context.Context, wt *git.Worktree, message string) error {
	_, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "mediadrop",
			Email: "mediadrop@local",
			When:  r.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", r.branch, r.branch))
	if err := r.repo.PushContext(ctx, &git.PushOptions{Auth: r.auth, RefSpecs: []gitconfig.RefSpec{refSpec}}); err != nil {
		return fmt.Errorf("failed to push local: %w", err)
	}

	return nil
}
