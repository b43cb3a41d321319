package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Canonical length and count limits for the two-page résumé layout.
// The validator and the stage engines both enforce these; the renderer
// accepts exactly this shape and nothing else.
const (
	MaxFullNameLen     = 50
	MaxEmailLen        = 100
	MinPhoneLen        = 5
	MaxPhoneLen        = 30
	MaxAddressLines    = 2
	MaxAddressLineLen  = 60
	MinProfileLen      = 50
	MaxProfileLen      = 400
	MinWorkRoles       = 1
	MaxWorkRoles       = 5
	MinRoleBullets     = 1
	MaxRoleBullets     = 4
	MaxBulletLen       = 200 // hard limit
	SoftBulletLen      = 100 // warning threshold
	MaxFurtherProjects = 3
	MaxProjectBullets  = 3
	MinEducation       = 1
	MaxEducation       = 3
	MaxEduDetails      = 2
	MinLanguages       = 1
	MaxLanguages       = 5
	MinSkills          = 5
	MaxSkills          = 8
	MaxSkillLen        = 50
)

// SupportedLanguages is the closed set of output languages
var SupportedLanguages = []string{"en", "de", "pl"}

// CVData is the single canonical résumé representation. Every stage engine
// reads from and proposes against this shape; the renderer consumes it as-is.
type CVData struct {
	FullName     string   `json:"full_name" validate:"omitempty,max=50"`
	Email        string   `json:"email" validate:"omitempty,email,max=100"`
	Phone        string   `json:"phone" validate:"omitempty,min=5,max=30"`
	AddressLines []string `json:"address_lines,omitempty" validate:"max=2,dive,max=60"`
	Nationality  string   `json:"nationality,omitempty"`
	BirthDate    string   `json:"birth_date,omitempty"`

	Profile    string `json:"profile" validate:"omitempty,min=50,max=400"`
	TargetRole string `json:"target_role,omitempty"` // metadata only, not rendered

	WorkExperience    []WorkRole       `json:"work_experience" validate:"max=5,dive"`
	FurtherExperience []Project        `json:"further_experience,omitempty" validate:"max=3,dive"`
	Education         []EducationEntry `json:"education" validate:"max=3,dive"`
	Languages         []LanguageItem   `json:"languages,omitempty" validate:"max=5"`

	ITAISkills                 []string `json:"it_ai_skills,omitempty" validate:"max=8,dive,max=50"`
	TechnicalOperationalSkills []string `json:"technical_operational_skills,omitempty" validate:"max=8,dive,max=50"`

	Certifications []string `json:"certifications,omitempty" validate:"max=6,dive,max=100"`
	Trainings      []string `json:"trainings,omitempty" validate:"max=6,dive,max=100"`
	Publications   []string `json:"publications,omitempty" validate:"max=4,dive,max=160"`
	References     string   `json:"references,omitempty" validate:"max=200"`
	Interests      []string `json:"interests,omitempty" validate:"max=6,dive,max=60"`
	DataPrivacy    string   `json:"data_privacy,omitempty" validate:"max=400"`

	PhotoURL string `json:"photo_url,omitempty"` // data URI
	Language string `json:"language,omitempty" validate:"omitempty,oneof=en de pl"`
}

// WorkRole is a single work-experience entry
type WorkRole struct {
	DateRange string   `json:"date_range" validate:"required,max=40"`
	Employer  string   `json:"employer" validate:"required,max=80"`
	Location  string   `json:"location,omitempty" validate:"max=60"`
	Title     string   `json:"title" validate:"required,max=80"`
	Bullets   []string `json:"bullets" validate:"min=1,max=4,dive,max=200"`
}

// EducationEntry is a single education entry
type EducationEntry struct {
	DateRange   string   `json:"date_range" validate:"required,max=40"`
	Institution string   `json:"institution" validate:"required,max=100"`
	Title       string   `json:"title" validate:"required,max=100"`
	Details     []string `json:"details,omitempty" validate:"max=2,dive,max=120"`
}

// Project is a further-experience entry (volunteering, side projects, ...)
type Project struct {
	DateRange    string   `json:"date_range,omitempty" validate:"max=40"`
	Organization string   `json:"organization" validate:"required,max=80"`
	Title        string   `json:"title" validate:"required,max=80"`
	Bullets      []string `json:"bullets,omitempty" validate:"max=3,dive,max=200"`
}

// LanguageItem accepts both the object form {"name":"German","level":"C1"}
// and the legacy string form "German (C1)" on input; it always marshals as
// the object form.
type LanguageItem struct {
	Name  string `json:"name" validate:"required,max=40"`
	Level string `json:"level,omitempty" validate:"max=20"`
}

// UnmarshalJSON implements the object-or-string contract for languages
func (l *LanguageItem) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		name, level := splitLanguageString(s)
		l.Name = name
		l.Level = level
		return nil
	}

	type plain LanguageItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("language item must be a string or an object: %w", err)
	}
	*l = LanguageItem(p)
	return nil
}

// splitLanguageString parses "German (C1)" into name and level
func splitLanguageString(s string) (string, string) {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, "(")
	if open > 0 && strings.HasSuffix(s, ")") {
		name := strings.TrimSpace(s[:open])
		level := strings.TrimSpace(s[open+1 : len(s)-1])
		return name, level
	}
	return s, ""
}

// NewEmptyCV returns the canonical blank résumé used at bootstrap.
// No legacy state is ever merged into it.
func NewEmptyCV() *CVData {
	return &CVData{
		AddressLines:               []string{},
		WorkExperience:             []WorkRole{},
		FurtherExperience:          []Project{},
		Education:                  []EducationEntry{},
		Languages:                  []LanguageItem{},
		ITAISkills:                 []string{},
		TechnicalOperationalSkills: []string{},
	}
}

// Clone returns a deep copy via JSON round-trip. Snapshots depend on this
// being a full structural copy.
func (c *CVData) Clone() *CVData {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		// CVData contains only marshalable types
		panic(fmt.Sprintf("cv clone marshal: %v", err))
	}
	var out CVData
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("cv clone unmarshal: %v", err))
	}
	return &out
}

// IsSupportedLanguage reports whether lang is in the closed language set
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
