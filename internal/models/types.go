// Package models defines the domain types for blogit.
package models

import "time"

// Entry types reported by a directory listing.
const (
	EntryTypeFile = "file"
	EntryTypeDir  = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	SHA  string `json:"sha"`
	Type string `json:"type"`
}

// RemoteFile is the metadata and base64 content of one file as reported by a source.
type RemoteFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	URL         string `json:"url"`
	HTMLURL     string `json:"html_url"`
	GitURL      string `json:"git_url"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding,omitempty"`
}

// CommitAuthor identifies the account behind a commit.
type CommitAuthor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// Commit is one entry of a file's revision history.
type Commit struct {
	SHA     string       `json:"sha"`
	Author  CommitAuthor `json:"author"`
	Date    time.Time    `json:"date"`
	HTMLURL string       `json:"html_url,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Contributor is a deduplicated commit author.
type Contributor struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}
