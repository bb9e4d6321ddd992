// Package models defines the domain types shared across aozoraconv.
package models

import (
	"time"

	"github.com/starford/aozoraconv/internal/parser"
)

// Book is one work listed in the registry.
type Book struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	TitleKana       string         `json:"title_kana,omitempty"`
	SortKey         string         `json:"sort_key,omitempty"`
	Subtitle        string         `json:"subtitle,omitempty"`
	SubtitleKana    string         `json:"subtitle_kana,omitempty"`
	OriginalTitle   string         `json:"original_title,omitempty"`
	WritingSystem   string         `json:"writing_system,omitempty"`
	Copyright       bool           `json:"copyright"`
	PublishedAt     string         `json:"published_at,omitempty"`
	UpdatedAt       string         `json:"updated_at,omitempty"`
	OriginalBooks   []OriginalBook `json:"original_books,omitempty"`
	InputterName    string         `json:"inputter_name,omitempty"`
	ProofreaderName string         `json:"proofreader_name,omitempty"`
	TextURL         string         `json:"text_url,omitempty"`
	TextEncoding    string         `json:"text_encoding,omitempty"`
	Contributors    []Contributor  `json:"contributors"`
}

// AuthorIDs returns the ids of every contributor, in registry order.
func (b *Book) AuthorIDs() []string {
	ids := make([]string, 0, len(b.Contributors))
	for _, c := range b.Contributors {
		ids = append(ids, c.AuthorID)
	}
	return ids
}

// Contributor links a book to a person with a role such as 著者 or 翻訳者.
type Contributor struct {
	AuthorID string `json:"author_id"`
	Role     string `json:"role"`
}

// OriginalBook is a printed source the text was transcribed from.
type OriginalBook struct {
	Title                  string `json:"title"`
	Publisher              string `json:"publisher,omitempty"`
	FirstEditionDate       string `json:"first_edition_date,omitempty"`
	InputEdition           string `json:"input_edition,omitempty"`
	ProofreadingEdition    string `json:"proofreading_edition,omitempty"`
	ParentTitle            string `json:"parent_title,omitempty"`
	ParentPublisher        string `json:"parent_publisher,omitempty"`
	ParentFirstEditionDate string `json:"parent_first_edition_date,omitempty"`
}

// Author is a person listed in the registry.
type Author struct {
	ID               string `json:"id"`
	LastName         string `json:"last_name"`
	FirstName        string `json:"first_name"`
	LastNameKana     string `json:"last_name_kana,omitempty"`
	FirstNameKana    string `json:"first_name_kana,omitempty"`
	LastNameSortKey  string `json:"last_name_sort_key,omitempty"`
	FirstNameSortKey string `json:"first_name_sort_key,omitempty"`
	LastNameRomaji   string `json:"last_name_romaji,omitempty"`
	FirstNameRomaji  string `json:"first_name_romaji,omitempty"`
	BirthDate        string `json:"birth_date,omitempty"`
	DeathDate        string `json:"death_date,omitempty"`
	Copyright        bool   `json:"copyright"`
}

// FullName joins the family and given name the Japanese way.
func (a *Author) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	return a.LastName + " " + a.FirstName
}

// Document is a converted book ready for serialization.
type Document struct {
	Book     Book             `json:"book"`
	Header   []parser.Segment `json:"-"`
	Body     []parser.Segment `json:"-"`
	Colophon []parser.Segment `json:"-"`
	Warnings []parser.Warning `json:"-"`
	Checksum string           `json:"checksum"`
}

// Text returns the reading text of the body.
func (d *Document) Text() string {
	return parser.Text(d.Body)
}

// FileInfo describes a file found under a storage root.
type FileInfo struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}
