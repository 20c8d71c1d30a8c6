package internal

import (
	"io"

	"github.com/starford/blogit/internal/source"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	output    io.Writer
	logOutput io.Writer
	source    source.Source
	executor  source.CommandExecutor
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where command results are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.output = w
	}
}

// WithLogOutput sets where logs are written. Defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithSource replaces the configured document source.
func WithSource(src source.Source) Option {
	return func(a *application) {
		a.source = src
	}
}

// WithCommandExecutor sets the executor the local source runs git with.
func WithCommandExecutor(e source.CommandExecutor) Option {
	return func(a *application) {
		a.executor = e
	}
}
