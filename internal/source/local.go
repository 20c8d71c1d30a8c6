package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/checksum"
	"github.com/starford/blogit/internal/models"
	"github.com/starford/blogit/internal/storage"
)

// CommandExecutor abstracts command execution for testing.
type CommandExecutor interface {
	// Run executes a command in dir and returns its standard output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its standard output.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// LocalOptions configures a Local source. WebURL, User and Repository are
// optional and only used to fill in browser links.
type LocalOptions struct {
	WebURL     string
	User       string
	Repository string
	Branch     string
	Executor   CommandExecutor
}

// Local reads documents from a git working copy on disk. Commit history
// comes from `git log`.
type Local struct {
	store    storage.Provider
	executor CommandExecutor
	opts     LocalOptions
}

// NewLocal builds a Local source over store.
func NewLocal(store storage.Provider, opts LocalOptions) *Local {
	executor := opts.Executor
	if executor == nil {
		executor = &DefaultExecutor{}
	}
	return &Local{store: store, executor: executor, opts: opts}
}

// ListDirectory implements Source.
func (l *Local) ListDirectory(_ context.Context, dir string) ([]models.Entry, error) {
	entries, err := l.store.List(dir)
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpList, dir, err)
	}
	return entries, nil
}

// GetFile implements Source.
func (l *Local) GetFile(_ context.Context, p string) (*models.RemoteFile, error) {
	data, err := l.store.Read(p)
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpGetFile, p, err)
	}
	abs := filepath.Join(l.store.Root(), filepath.FromSlash(p))
	return &models.RemoteFile{
		Name:        path.Base(p),
		Path:        p,
		SHA:         checksum.GitBlob(data),
		URL:         "file://" + filepath.ToSlash(abs),
		HTMLURL:     l.webLink("blob", p),
		DownloadURL: "file://" + filepath.ToSlash(abs),
		Content:     base64.StdEncoding.EncodeToString(data),
		Encoding:    "base64",
	}, nil
}

// Fields in the git log format: hash, author name, author email, author date, subject.
const (
	logFieldSep  = "\x1f"
	logRecordSep = "\x1e"
	logFormat    = "--format=%H%x1f%an%x1f%ae%x1f%aI%x1f%s%x1e"
)

// GetCommits implements Source. Commits are returned newest first, following renames.
func (l *Local) GetCommits(ctx context.Context, p string) ([]models.Commit, error) {
	out, err := l.executor.Run(ctx, l.store.Root(), "git", "log", "--follow", logFormat, "--", p)
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpCommits, p, err)
	}
	commits, err := parseGitLog(out)
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpCommits, p, err)
	}
	for i := range commits {
		commits[i].HTMLURL = l.webLink("commit", commits[i].SHA)
	}
	return commits, nil
}

func parseGitLog(out []byte) ([]models.Commit, error) {
	var commits []models.Commit
	for _, record := range strings.Split(string(out), logRecordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.Split(record, logFieldSep)
		if len(fields) != 5 {
			return nil, fmt.Errorf("unexpected git log record %q", record)
		}
		date, err := time.Parse(time.RFC3339, fields[3])
		if err != nil {
			return nil, fmt.Errorf("parse commit date: %w", err)
		}
		commits = append(commits, models.Commit{
			SHA:     fields[0],
			Author:  models.CommitAuthor{Login: fields[1]},
			Date:    date,
			Message: fields[4],
		})
	}
	return commits, nil
}

func (l *Local) webLink(kind, ref string) string {
	if l.opts.User == "" || l.opts.Repository == "" {
		return ""
	}
	base := strings.TrimRight(l.opts.WebURL, "/")
	if base == "" {
		base = "https://github.com"
	}
	if kind == "blob" {
		branch := l.opts.Branch
		if branch == "" {
			branch = "master"
		}
		return strings.Join([]string{base, l.opts.User, l.opts.Repository, "blob", branch, ref}, "/")
	}
	return strings.Join([]string{base, l.opts.User, l.opts.Repository, kind, ref}, "/")
}
