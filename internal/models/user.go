package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// User is an entry of the organization's user table.
type User struct {
	ID                 string            `json:"id" yaml:"id"`
	Name               string            `json:"name" yaml:"name"`
	JobTitle           string            `json:"jobTitle" yaml:"jobTitle"`
	Unit               string            `json:"unit" yaml:"unit"`
	Email              string            `json:"email" yaml:"email"`
	AvatarURL          string            `json:"avatarUrl" yaml:"avatarUrl"`
	IsManager          bool              `json:"isManager" yaml:"isManager"`
	JoinDate           Date              `json:"joinDate" yaml:"joinDate"`
	CertificationCount int               `json:"certificationCount" yaml:"certificationCount"`
	Bio                string            `json:"bio,omitempty" yaml:"bio,omitempty"`
	Skills             []string          `json:"skills,omitempty" yaml:"skills,omitempty"`
	SocialLinks        map[string]string `json:"socialLinks,omitempty" yaml:"socialLinks,omitempty"`
}

// Snapshot returns the author fields embedded into certificates.
func (u User) Snapshot() Author {
	return Author{
		ID:        u.ID,
		Name:      u.Name,
		JobTitle:  u.JobTitle,
		Unit:      u.Unit,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	out := u
	out.Skills = cloneStrings(u.Skills)
	if u.SocialLinks != nil {
		out.SocialLinks = make(map[string]string, len(u.SocialLinks))
		for k, v := range u.SocialLinks {
			out.SocialLinks[k] = v
		}
	}
	return out
}

// ProfilePatch carries the user-editable profile fields. Nil fields are left unchanged.
type ProfilePatch struct {
	Name        *string           `json:"name,omitempty"`
	JobTitle    *string           `json:"jobTitle,omitempty"`
	Unit        *string           `json:"unit,omitempty"`
	AvatarURL   *string           `json:"avatarUrl,omitempty"`
	Bio         *string           `json:"bio,omitempty"`
	Skills      []string          `json:"skills,omitempty"`
	SocialLinks map[string]string `json:"socialLinks,omitempty"`
}

// Validate rejects blank names and malformed social links.
func (p *ProfilePatch) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&p.JobTitle, validation.NilOrNotEmpty),
		validation.Field(&p.Unit, validation.NilOrNotEmpty),
		validation.Field(&p.SocialLinks, validation.Each(is.URL)),
	)
}

// Apply merges the patch onto u and returns the result.
func (p ProfilePatch) Apply(u User) User {
	out := u.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.JobTitle != nil {
		out.JobTitle = *p.JobTitle
	}
	if p.Unit != nil {
		out.Unit = *p.Unit
	}
	if p.AvatarURL != nil {
		out.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		out.Bio = *p.Bio
	}
	if p.Skills != nil {
		out.Skills = cloneStrings(p.Skills)
	}
	if p.SocialLinks != nil {
		out.SocialLinks = make(map[string]string, len(p.SocialLinks))
		for k, v := range p.SocialLinks {
			out.SocialLinks[k] = v
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
