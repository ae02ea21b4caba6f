package models

import (
	"fmt"
	"strings"
)

// SectionResult is the dry-run classification of one section.
type SectionResult struct {
	Name       string `json:"name"`
	WillCreate int    `json:"will_create"`
	WillUpdate int    `json:"will_update"`
	WillSkip   int    `json:"will_skip"`
	WillDelete int    `json:"will_delete"`
	TotalJSON  int    `json:"total_json"`
}

// HasChanges reports whether anything would be created, updated or deleted.
func (r SectionResult) HasChanges() bool {
	return r.WillCreate > 0 || r.WillUpdate > 0 || r.WillDelete > 0
}

func (r SectionResult) line() string {
	return fmt.Sprintf("- %s: create %d, update %d, skip %d, delete %d (json %d)",
		r.Name, r.WillCreate, r.WillUpdate, r.WillSkip, r.WillDelete, r.TotalJSON)
}

// DryRunReport holds one result per section, in section order.
type DryRunReport struct {
	Sections []SectionResult `json:"sections"`
}

// Section returns the result for the named section.
func (r *DryRunReport) Section(name string) (SectionResult, bool) {
	if r == nil {
		return SectionResult{}, false
	}
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionResult{}, false
}

// NothingToDo is true when no section would create, update or delete.
func (r *DryRunReport) NothingToDo() bool {
	if r == nil {
		return true
	}
	for _, s := range r.Sections {
		if s.HasChanges() {
			return false
		}
	}
	return true
}

// Summary renders a "Dry-run:" header followed by one line per section.
func (r *DryRunReport) Summary() string {
	var b strings.Builder
	b.WriteString(SummaryHeader)
	if r == nil {
		return b.String()
	}
	for _, s := range r.Sections {
		b.WriteString("\n")
		b.WriteString(s.line())
	}
	return b.String()
}

// SummaryLines returns the per-section summary lines without the header.
func (r *DryRunReport) SummaryLines() []string {
	lines := strings.Split(r.Summary(), "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), SummaryHeader) {
		lines = lines[1:]
	}
	return lines
}

const SummaryHeader = "Dry-run:"

// SectionWriteResult is what one section's import actually did.
type SectionWriteResult struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

// DidWrite reports whether any write was committed for the section.
func (r SectionWriteResult) DidWrite() bool {
	return r.Upserted > 0 || r.Deleted > 0
}

// ImportOutcome aggregates per-section write results.
type ImportOutcome struct {
	Sections map[string]SectionWriteResult `json:"sections"`
}

func NewImportOutcome() *ImportOutcome {
	return &ImportOutcome{Sections: map[string]SectionWriteResult{}}
}

// Get returns the write result for a section, zero if it did nothing.
func (o *ImportOutcome) Get(name string) SectionWriteResult {
	if o == nil || o.Sections == nil {
		return SectionWriteResult{}
	}
	return o.Sections[name]
}

func (o *ImportOutcome) Set(name string, res SectionWriteResult) {
	if o.Sections == nil {
		o.Sections = map[string]SectionWriteResult{}
	}
	o.Sections[name] = res
}

// Totals sums upserts and deletes across sections.
func (o *ImportOutcome) Totals() (upserted, deleted int) {
	if o == nil {
		return 0, 0
	}
	for _, r := range o.Sections {
		upserted += r.Upserted
		deleted += r.Deleted
	}
	return upserted, deleted
}
