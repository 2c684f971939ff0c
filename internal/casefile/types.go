package casefile

import (
	"fmt"
	"strings"
	"time"
)

// Section is one narrative section of a case document. Extraction runs
// once per (pass, section) pair.
type Section struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Case is an ethics case under review.
type Case struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`

	// Board record, parsed upstream. Questions are the board's competing-warrant
	// questions; Conclusions the cited conclusions; Resolution the action the
	// board ultimately endorsed.
	BoardQuestions   []string `json:"board_questions,omitempty"`
	BoardConclusions []string `json:"board_conclusions,omitempty"`
	BoardResolution  string   `json:"board_resolution,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the minimum shape required before a case can be queued.
func (c *Case) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("case id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("case title is required")
	}
	if len(c.Sections) == 0 {
		return fmt.Errorf("case %s has no sections", c.ID)
	}
	for i, s := range c.Sections {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("case %s: section %d has no name", c.ID, i)
		}
		if strings.TrimSpace(s.Text) == "" {
			return fmt.Errorf("case %s: section %q is empty", c.ID, s.Name)
		}
	}
	return nil
}

// SectionNames returns the section names in document order.
func (c *Case) SectionNames() []string {
	names := make([]string, len(c.Sections))
	for i, s := range c.Sections {
		names[i] = s.Name
	}
	return names
}

// SectionText returns the text of the named section, or "" if absent.
func (c *Case) SectionText(name string) string {
	for _, s := range c.Sections {
		if s.Name == name {
			return s.Text
		}
	}
	return ""
}
