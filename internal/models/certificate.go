// Package models defines the domain types for certhub.
package models

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Visibility controls who may see a certificate.
type Visibility string

// Visibility values.
const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

// Author is the author snapshot embedded in every certificate. It is a copy of
// the user record taken at creation time and is not kept in sync with it.
type Author struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	JobTitle  string `json:"jobTitle" yaml:"jobTitle"`
	Unit      string `json:"unit" yaml:"unit"`
	Email     string `json:"email" yaml:"email"`
	AvatarURL string `json:"avatarUrl" yaml:"avatarUrl"`
}

// Certificate is a single certification record owned by one author.
type Certificate struct {
	ID              string     `json:"id" yaml:"id"`
	Title           string     `json:"title" yaml:"title"`
	Category        string     `json:"category" yaml:"category"`
	Subcategory     string     `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Issuer          string     `json:"issuer" yaml:"issuer"`
	Date            Date       `json:"date" yaml:"date"`
	FileURL         string     `json:"fileUrl" yaml:"fileUrl"`
	Links           []string   `json:"links" yaml:"links"`
	Remarks         string     `json:"remarks" yaml:"remarks"`
	Tags            []string   `json:"tags" yaml:"tags"`
	Visibility      Visibility `json:"visibility" yaml:"visibility"`
	ContactsEnabled bool       `json:"contactsEnabled" yaml:"contactsEnabled"`
	Likes           int        `json:"likes" yaml:"likes"`
	Views           int        `json:"views" yaml:"views"`
	IsLikedByUser   bool       `json:"isLikedByUser" yaml:"isLikedByUser"`
	Author          Author     `json:"author" yaml:"author"`
}

// Clone returns a deep copy of c.
func (c Certificate) Clone() Certificate {
	out := c
	out.Links = cloneStrings(c.Links)
	out.Tags = cloneStrings(c.Tags)
	return out
}

// Normalize enforces the collection invariants on a record: lowercase,
// deduplicated tags, non-nil slices, default visibility and non-negative counters.
func (c *Certificate) Normalize() {
	c.Tags = NormalizeTags(c.Tags)
	if c.Links == nil {
		c.Links = []string{}
	}
	if c.Visibility == "" {
		c.Visibility = VisibilityPublic
	}
	if c.Likes < 0 {
		c.Likes = 0
	}
	if c.Views < 0 {
		c.Views = 0
	}
}

// NormalizeTags lowercases, trims and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Draft is the input for creating a certificate: everything except the
// identifier and the counters.
type Draft struct {
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Subcategory     string     `json:"subcategory,omitempty"`
	Issuer          string     `json:"issuer"`
	Date            Date       `json:"date"`
	FileURL         string     `json:"fileUrl"`
	Links           []string   `json:"links,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Visibility      Visibility `json:"visibility,omitempty"`
	ContactsEnabled bool       `json:"contactsEnabled"`
	Author          Author     `json:"author"`
}

// Validate checks the draft's required fields.
func (d *Draft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&d.Category, validation.Required),
		validation.Field(&d.Issuer, validation.Required),
		validation.Field(&d.FileURL, validation.Required),
		validation.Field(&d.Date, validation.By(notInFuture)),
		validation.Field(&d.Links, validation.Each(is.URL)),
		validation.Field(&d.Visibility, validation.In(Visibility(""), VisibilityPublic, VisibilityInternal)),
		validation.Field(&d.Author, validation.By(authorPresent)),
	)
}

// Certificate builds a record from the draft with the given identifier and
// zeroed counters.
func (d Draft) Certificate(id string) Certificate {
	c := Certificate{
		ID:              id,
		Title:           strings.TrimSpace(d.Title),
		Category:        d.Category,
		Subcategory:     d.Subcategory,
		Issuer:          strings.TrimSpace(d.Issuer),
		Date:            d.Date,
		FileURL:         d.FileURL,
		Links:           cloneStrings(d.Links),
		Remarks:         d.Remarks,
		Tags:            cloneStrings(d.Tags),
		Visibility:      d.Visibility,
		ContactsEnabled: d.ContactsEnabled,
		Author:          d.Author,
	}
	c.Normalize()
	return c
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Title           *string     `json:"title,omitempty"`
	Category        *string     `json:"category,omitempty"`
	Subcategory     *string     `json:"subcategory,omitempty"`
	Issuer          *string     `json:"issuer,omitempty"`
	Date            *Date       `json:"date,omitempty"`
	FileURL         *string     `json:"fileUrl,omitempty"`
	Links           []string    `json:"links,omitempty"`
	Remarks         *string     `json:"remarks,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	Visibility      *Visibility `json:"visibility,omitempty"`
	ContactsEnabled *bool       `json:"contactsEnabled,omitempty"`

	// Counter fields are written by the like/view mutators only.
	Likes         *int  `json:"-"`
	Views         *int  `json:"-"`
	IsLikedByUser *bool `json:"-"`
}

// Validate rejects patches that would blank a required field.
func (p *Patch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Title, validation.NilOrNotEmpty),
		validation.Field(&p.Category, validation.NilOrNotEmpty),
		validation.Field(&p.Issuer, validation.NilOrNotEmpty),
		validation.Field(&p.FileURL, validation.NilOrNotEmpty),
		validation.Field(&p.Links, validation.Each(is.URL)),
		validation.Field(&p.Visibility, validation.NilOrNotEmpty, validation.In(VisibilityPublic, VisibilityInternal)),
	)
}

// Apply merges the patch onto c and returns the result.
func (p Patch) Apply(c Certificate) Certificate {
	out := c.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Subcategory != nil {
		out.Subcategory = *p.Subcategory
	}
	if p.Issuer != nil {
		out.Issuer = *p.Issuer
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.FileURL != nil {
		out.FileURL = *p.FileURL
	}
	if p.Links != nil {
		out.Links = cloneStrings(p.Links)
	}
	if p.Remarks != nil {
		out.Remarks = *p.Remarks
	}
	if p.Tags != nil {
		out.Tags = cloneStrings(p.Tags)
	}
	if p.Visibility != nil {
		out.Visibility = *p.Visibility
	}
	if p.ContactsEnabled != nil {
		out.ContactsEnabled = *p.ContactsEnabled
	}
	if p.Likes != nil {
		out.Likes = *p.Likes
	}
	if p.Views != nil {
		out.Views = *p.Views
	}
	if p.IsLikedByUser != nil {
		out.IsLikedByUser = *p.IsLikedByUser
	}
	out.Normalize()
	return out
}

func notInFuture(value any) error {
	d, ok := value.(Date)
	if !ok || d.IsZero() {
		return nil
	}
	if d.After(Today()) {
		return errors.New("cannot be in the future")
	}
	return nil
}

func authorPresent(value any) error {
	a, ok := value.(Author)
	if !ok || strings.TrimSpace(a.ID) == "" {
		return errors.New("author is required")
	}
	return nil
}
