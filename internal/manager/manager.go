// Package manager implements the unit manager's view: members, their
// certificates, unit statistics and CSV exports.
package manager

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/starford/certhub/internal/models"
)

// CertSource provides the certificate collection.
type CertSource interface {
	All() []models.Certificate
}

// UserSource provides unit membership.
type UserSource interface {
	ByUnit(unit string) []models.User
}

// Service answers manager queries over a unit.
type Service struct {
	certs CertSource
	users UserSource
}

// New returns a Service reading from certs and users.
func New(certs CertSource, users UserSource) *Service {
	return &Service{certs: certs, users: users}
}

// UnitStats summarizes one unit.
type UnitStats struct {
	UnitName              string       `json:"unitName"`
	TotalMembers          int          `json:"totalMembers"`
	TotalCertifications   int          `json:"totalCertifications"`
	AverageCertifications float64      `json:"averageCertifications"`
	ActiveLearners        int          `json:"activeLearners"`
	TopPerformer          *models.User `json:"topPerformer"`
}

// Members returns the users of unit.
func (s *Service) Members(unit string) []models.User {
	return s.users.ByUnit(unit)
}

// Certificates returns the certificates authored by members of unit, grouped
// by member in membership order.
func (s *Service) Certificates(unit string) []models.Certificate {
	members := s.Members(unit)
	byAuthor := s.byAuthor()
	out := []models.Certificate{}
	for _, m := range members {
		out = append(out, byAuthor[m.ID]...)
	}
	return out
}

// Stats computes the unit statistics. Ties for top performer go to the
// member listed first.
func (s *Service) Stats(unit string) UnitStats {
	members := s.Members(unit)
	byAuthor := s.byAuthor()

	st := UnitStats{UnitName: unit, TotalMembers: len(members)}
	best := -1
	for i, m := range members {
		n := len(byAuthor[m.ID])
		st.TotalCertifications += n
		if n > 0 {
			st.ActiveLearners++
		}
		if best < 0 || n > len(byAuthor[members[best].ID]) {
			best = i
		}
	}
	if len(members) > 0 {
		st.AverageCertifications = math.Round(float64(st.TotalCertifications)/float64(len(members))*100) / 100
		top := members[best]
		st.TopPerformer = &top
	}
	return st
}

var (
	memberHeader = []string{
		"Name", "Email", "Job Title", "Unit", "Role",
		"Certificates Count", "Contact Enabled", "Join Date",
	}
	certificateHeader = []string{
		"Title", "Category", "Subcategory", "Issuer",
		"Completion Date", "Author Name", "Author Email",
		"Likes", "Views", "Created Date",
	}
)

// ExportMembersCSV writes one row per member of unit.
func (s *Service) ExportMembersCSV(w io.Writer, unit string) error {
	byAuthor := s.byAuthor()
	cw := csv.NewWriter(w)
	if err := cw.Write(memberHeader); err != nil {
		return fmt.Errorf("manager: export members: %w", err)
	}
	for _, m := range s.Members(unit) {
		certs := byAuthor[m.ID]
		contact := false
		for _, c := range certs {
			contact = contact || c.ContactsEnabled
		}
		role := "Member"
		if m.IsManager {
			role = "Manager"
		}
		row := []string{
			m.Name, m.Email, m.JobTitle, m.Unit, role,
			strconv.Itoa(len(certs)), strconv.FormatBool(contact), m.JoinDate.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("manager: export members: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("manager: export members: %w", err)
	}
	return nil
}

// ExportCertificatesCSV writes one row per certificate of unit. Records carry
// no creation timestamp, so Created Date repeats the completion date.
func (s *Service) ExportCertificatesCSV(w io.Writer, unit string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(certificateHeader); err != nil {
		return fmt.Errorf("manager: export certificates: %w", err)
	}
	for _, c := range s.Certificates(unit) {
		name, email := c.Author.Name, c.Author.Email
		if c.Author.ID == "" {
			name, email = "Unknown", "Unknown"
		}
		row := []string{
			c.Title, c.Category, c.Subcategory, c.Issuer,
			c.Date.String(), name, email,
			strconv.Itoa(c.Likes), strconv.Itoa(c.Views), c.Date.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("manager: export certificates: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("manager: export certificates: %w", err)
	}
	return nil
}

func (s *Service) byAuthor() map[string][]models.Certificate {
	out := make(map[string][]models.Certificate)
	for _, c := range s.certs.All() {
		out[c.Author.ID] = append(out[c.Author.ID], c)
	}
	return out
}
