package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Source drivers.
const (
	SourceDriverGitHub = "github"
	SourceDriverLocal  = "local"
)

// Cache drivers.
const (
	CacheDriverMemory = "memory"
	CacheDriverSQLite = "sqlite"
)

// Build error policies.
const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Source SourceConfig      `yaml:"source"`
	Cache  CacheConfig       `yaml:"cache"`
	Build  BuildConfig       `yaml:"build"`
	Watch  WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Build.Validate(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if c.Watch.Enabled && c.Source.Driver == SourceDriverGitHub && c.Watch.Interval == 0 {
		return fmt.Errorf("watch: interval is required for the %q source", SourceDriverGitHub)
	}
	return nil
}

// LogValue masks credentials when the configuration is logged.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log_level", c.App.LogLevel.String()),
		slog.Any("source", c.Source),
		slog.Group("cache",
			slog.Bool("enabled", c.Cache.Enabled),
			slog.String("driver", c.Cache.Driver),
			slog.String("path", c.Cache.Path),
			slog.Duration("listing_ttl", c.Cache.ListingTTL),
		),
		slog.Group("build",
			slog.Int("workers", c.Build.Workers),
			slog.Float64("requests_per_second", c.Build.RequestsPerSecond),
			slog.String("on_error", c.Build.OnError),
			slog.Bool("unique_slugs", c.Build.UniqueSlugs),
		),
		slog.Group("watch",
			slog.Bool("enabled", c.Watch.Enabled),
			slog.Duration("interval", c.Watch.Interval),
		),
	)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// SourceConfig selects and configures where articles are read from.
type SourceConfig struct {
	Driver      string       `yaml:"driver"`
	GitHub      GitHubConfig `yaml:"github"`
	Local       LocalConfig  `yaml:"local"`
	ArticlesDir string       `yaml:"articles_dir"`
	Extension   string       `yaml:"extension"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(SourceDriverGitHub, SourceDriverLocal)),
		validation.Field(&c.Extension, validation.Required),
	); err != nil {
		return err
	}
	switch c.Driver {
	case SourceDriverGitHub:
		return c.GitHub.Validate()
	default:
		return c.Local.Validate()
	}
}

// LogValue masks the GitHub token.
func (c SourceConfig) LogValue() slog.Value {
	token := ""
	if c.GitHub.Token != "" {
		token = "****"
	}
	return slog.GroupValue(
		slog.String("driver", c.Driver),
		slog.String("user", c.GitHub.User),
		slog.String("repository", c.GitHub.Repository),
		slog.String("branch", c.GitHub.Branch),
		slog.String("token", token),
		slog.String("local_path", c.Local.Path),
		slog.String("articles_dir", c.ArticlesDir),
	)
}

// GitHubConfig holds the repository coordinates and credential for the GitHub source.
// Token may be empty for public repositories.
type GitHubConfig struct {
	Token      string `yaml:"token"`
	User       string `yaml:"user"`
	Repository string `yaml:"repository"`
	Branch     string `yaml:"branch"`
	BaseURL    string `yaml:"base_url"`
	WebURL     string `yaml:"web_url"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.Repository, validation.Required),
	)
}

// LocalConfig points at a git checkout on disk.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the local source configuration.
func (c *LocalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"`
	Path       string        `yaml:"path"`
	ListingTTL time.Duration `yaml:"listing_ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(CacheDriverMemory, CacheDriverSQLite)),
		validation.Field(&c.Path, validation.When(c.Enabled && c.Driver == CacheDriverSQLite, validation.Required)),
		validation.Field(&c.ListingTTL, validation.Min(time.Duration(0))),
	)
}

// BuildConfig tunes the collection build.
type BuildConfig struct {
	Workers           int           `yaml:"workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	Timeout           time.Duration `yaml:"timeout"`
	OnError           string        `yaml:"on_error"`
	UniqueSlugs       bool          `yaml:"unique_slugs"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.CallTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.OnError, validation.Required, validation.In(OnErrorSkip, OnErrorAbort)),
	)
}

// WatchConfig controls continuous rebuilding.
//
// With the local source, file changes trigger a rebuild and Interval adds
// periodic rebuilds on top. With the GitHub source only Interval applies.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Source: SourceConfig{
			Driver: SourceDriverGitHub,
			GitHub: GitHubConfig{
				Branch: "master",
			},
			ArticlesDir: "articles",
			Extension:   ".md",
		},
		Cache: CacheConfig{
			Enabled:    true,
			Driver:     CacheDriverSQLite,
			Path:       "./blogit.db",
			ListingTTL: 10 * time.Minute,
		},
		Build: BuildConfig{
			Workers:           4,
			RequestsPerSecond: 10,
			CallTimeout:       15 * time.Second,
			Timeout:           5 * time.Minute,
			OnError:           OnErrorSkip,
		},
		Watch: WatchConfig{
			Interval: 5 * time.Minute,
		},
	}
}
