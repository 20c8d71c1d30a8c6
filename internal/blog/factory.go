// Package blog turns source documents into a navigable collection of articles.
package blog

import (
	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/models"
	"github.com/starford/blogit/internal/parser"
)

// Factory builds one Article from a remote file and its commit history.
// It holds no per-document state and is safe for concurrent use.
type Factory struct {
	parser *parser.Parser
	opts   models.ArticleOptions
}

// NewFactory creates a factory. A nil parser selects the default renderer.
func NewFactory(p *parser.Parser, opts models.ArticleOptions) *Factory {
	if p == nil {
		p = parser.New(nil)
	}
	return &Factory{parser: p, opts: opts}
}

// Make decodes, parses and interprets file. Failures are returned as
// *apperr.DocumentError carrying the file path.
func (f *Factory) Make(file models.RemoteFile, commits []models.Commit) (*models.Article, error) {
	doc, err := models.NewDocument(file, commits)
	if err != nil {
		return nil, &apperr.DocumentError{Path: file.Path, Err: err}
	}

	res, err := f.parser.Parse(doc.Content())
	if err != nil {
		return nil, &apperr.DocumentError{Path: file.Path, Err: err}
	}

	a, err := models.NewArticle(doc, res.Metadata, res.Body, res.HTML, f.opts)
	if err != nil {
		return nil, &apperr.DocumentError{Path: file.Path, Err: err}
	}
	return a, nil
}
