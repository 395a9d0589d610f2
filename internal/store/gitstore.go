package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/misc"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
)

// gcInterval defines minimum time between garbage collection runs.
const gcInterval = 5 * time.Minute

// GitStoreConfig configures the git backend. An empty Remote keeps the repository local.
type GitStoreConfig struct {
	Remote    string
	Username  string
	Password  string
	LocalPath string
}

// GitStore keeps the entries as a JSON file in a git repository. Every write is
// squashed into a single parentless commit and force pushed, so the remote never
// accumulates token history.
type GitStore struct {
	mu      sync.Mutex
	cfg     GitStoreConfig
	repoDir string
	lastGC  time.Time
	ready   bool
	now     func() time.Time
}

// NewGitStore creates a git store rooted at cfg.LocalPath.
func NewGitStore(cfg GitStoreConfig) (*GitStore, error) {
	dir := strings.TrimSpace(cfg.LocalPath)
	if dir == "" {
		return nil, fmt.Errorf("git store: local path is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("git store: resolve local path: %w", err)
	}
	cfg.Remote = strings.TrimSpace(cfg.Remote)
	return &GitStore{cfg: cfg, repoDir: abs, now: time.Now}, nil
}


func (s *GitStore) tokenPath() string { return filepath.Join(s.repoDir, TokenFileName) }

// EnsureRepository clones, opens or initialises the working tree. It is called
// lazily by every operation and is safe to call repeatedly.
func (s *GitStore) EnsureRepository() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureRepositoryLocked()
}

func (s *GitStore) ensureRepositoryLocked() error {
	if s.ready {
		return nil
	}
	gitDir := filepath.Join(s.repoDir, ".git")
	authMethod := s.gitAuth()
	if _, err := os.Stat(gitDir); errors.Is(err, fs.ErrNotExist) {
		if errMk := os.MkdirAll(s.repoDir, 0o700); errMk != nil {
			return fmt.Errorf("git store: create repo dir: %w", errMk)
		}
		if s.cfg.Remote == "" {
			if _, errInit := git.PlainInit(s.repoDir, false); errInit != nil {
				return fmt.Errorf("git store: init repo: %w", errInit)
			}
		} else if _, errClone := git.PlainClone(s.repoDir, &git.CloneOptions{Auth: authMethod, URL: s.cfg.Remote}); errClone != nil {
			if !errors.Is(errClone, transport.ErrEmptyRemoteRepository) {
				return fmt.Errorf("git store: clone remote: %w", errClone)
			}
			_ = os.RemoveAll(gitDir)
			repo, errInit := git.PlainInit(s.repoDir, false)
			if errInit != nil {
				return fmt.Errorf("git store: init empty repo: %w", errInit)
			}
			if _, errCreate := repo.CreateRemote(&config.RemoteConfig{
				Name: "origin",
				URLs: []string{s.cfg.Remote},
			}); errCreate != nil && !errors.Is(errCreate, git.ErrRemoteExists) {
				return fmt.Errorf("git store: configure remote: %w", errCreate)
			}
		}
	} else if err != nil {
		return fmt.Errorf("git store: stat repo: %w", err)
	} else if s.cfg.Remote != "" {
		repo, errOpen := git.PlainOpen(s.repoDir)
		if errOpen != nil {
			return fmt.Errorf("git store: open repo: %w", errOpen)
		}
		worktree, errWorktree := repo.Worktree()
		if errWorktree != nil {
			return fmt.Errorf("git store: worktree: %w", errWorktree)
		}
		if errPull := worktree.Pull(&git.PullOptions{Auth: authMethod, RemoteName: "origin", Force: true}); errPull != nil {
			switch {
			case errors.Is(errPull, git.NoErrAlreadyUpToDate),
				errors.Is(errPull, git.ErrUnstagedChanges),
				errors.Is(errPull, git.ErrNonFastForwardUpdate):
				// local state wins
			case errors.Is(errPull, transport.ErrAuthenticationRequired),
				errors.Is(errPull, plumbing.ErrReferenceNotFound),
				errors.Is(errPull, transport.ErrEmptyRemoteRepository):
				log.WithError(errPull).Debug("git store: pull skipped")
			default:
				return fmt.Errorf("git store: pull: %w", errPull)
			}
		}
	}
	s.ready = true
	return nil
}

// Get implements auth.Store. It reads the working tree; the remote is synced by EnsureRepository.
func (s *GitStore) Get(_ context.Context) (*auth.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRepositoryLocked(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.tokenPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("git store: read tokens: %w", err)
	}
	return decodeEntries(data)
}

// Put implements auth.Store.
func (s *GitStore) Put(_ context.Context, t *auth.TokenSet) error {
	if t == nil {
		return errNilTokenSet
	}
	raw, err := encodeEntries(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.ensureRepositoryLocked(); err != nil {
		return err
	}
	misc.LogSavingCredentials(s.tokenPath())
	if err = os.WriteFile(s.tokenPath(), raw, 0o600); err != nil {
		return fmt.Errorf("git store: write tokens: %w", err)
	}
	return s.commitAndPushLocked("Update Google Ads tokens")
}

// Clear implements auth.Store.
func (s *GitStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRepositoryLocked(); err != nil {
		return err
	}
	if err := os.Remove(s.tokenPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("git store: remove tokens: %w", err)
	}
	return s.commitAndPushLocked("Clear Google Ads tokens")
}

func (s *GitStore) gitAuth() transport.AuthMethod {
	if s.cfg.Username == "" && s.cfg.Password == "" {
		return nil
	}
	user := s.cfg.Username
	if user == "" {
		user = "git"
	}
	return &http.BasicAuth{Username: user, Password: s.cfg.Password}
}

func (s *GitStore) commitAndPushLocked(message string) error {
	repo, err := git.PlainOpen(s.repoDir)
	if err != nil {
		return fmt.Errorf("git store: open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git store: worktree: %w", err)
	}
	if _, err = worktree.Add(TokenFileName); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("git store: add %s: %w", TokenFileName, err)
		}
		if _, errRemove := worktree.Remove(TokenFileName); errRemove != nil && !errors.Is(errRemove, os.ErrNotExist) {
			return fmt.Errorf("git store: remove %s: %w", TokenFileName, errRemove)
		}
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("git store: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	signature := &object.Signature{
		Name:  "googleadsdashboard",
		Email: "adsauth@local",
		When:  s.now(),
	}
	commitHash, err := worktree.Commit(message, &git.CommitOptions{Author: signature})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("git store: commit: %w", err)
	}
	headRef, errHead := repo.Head()
	if errHead != nil {
		if !errors.Is(errHead, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("git store: get head: %w", errHead)
		}
	} else if errRewrite := rewriteHeadAsSingleCommit(repo, headRef.Name(), commitHash, message, signature); errRewrite != nil {
		return errRewrite
	}
	s.maybeRunGC(repo)
	if s.cfg.Remote == "" {
		return nil
	}
	if err = repo.Push(&git.PushOptions{Auth: s.gitAuth(), Force: true}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("git store: push: %w", err)
	}
	return nil
}

// rewriteHeadAsSingleCommit points branch at a parentless copy of commitHash.
func rewriteHeadAsSingleCommit(repo *git.Repository, branch plumbing.ReferenceName, commitHash plumbing.Hash, message string, signature *object.Signature) error {
	commitObj, err := repo.CommitObject(commitHash)
	if err != nil {
		return fmt.Errorf("git store: inspect head commit: %w", err)
	}
	squashed := &object.Commit{
		Author:       *signature,
		Committer:    *signature,
		Message:      message,
		TreeHash:     commitObj.TreeHash,
		Encoding:     commitObj.Encoding,
		ExtraHeaders: commitObj.ExtraHeaders,
	}
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.CommitObject)
	if err = squashed.Encode(mem); err != nil {
		return fmt.Errorf("git store: encode squashed commit: %w", err)
	}
	newHash, err := repo.Storer.SetEncodedObject(mem)
	if err != nil {
		return fmt.Errorf("git store: write squashed commit: %w", err)
	}
	if err = repo.Storer.SetReference(plumbing.NewHashReference(branch, newHash)); err != nil {
		return fmt.Errorf("git store: update branch reference: %w", err)
	}
	return nil
}

func (s *GitStore) maybeRunGC(repo *git.Repository) {
	now := s.now()
	if now.Sub(s.lastGC) < gcInterval {
		return
	}
	s.lastGC = now

	pruneOpts := git.PruneOptions{
		OnlyObjectsOlderThan: now,
		Handler:              repo.DeleteObject,
	}
	if err := repo.Prune(pruneOpts); err != nil && !errors.Is(err, git.ErrLooseObjectsNotSupported) {
		log.WithError(err).Debug("git store: prune failed")
		return
	}
	if err := repo.RepackObjects(&git.RepackConfig{}); err != nil {
		log.WithError(err).Debug("git store: repack failed")
	}
}
