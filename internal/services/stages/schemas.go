package stages

// Stage names used for budgets, fixtures and audit entries
const (
	StageJobPosting  = "job_posting"
	StageTranslate   = "translate"
	StageWork        = "work_experience"
	StageSkills      = "skills"
	StageFurther     = "further"
	StageEducation   = "education"
	StageCoverLetter = "cover_letter"
)

// Output schemas for the structured stage calls. Gemini consumes these as
// native response schemas; Claude receives them embedded in the system
// prompt. Keep them shallow: deeply nested schemas degrade structured
// output quality on both providers.

var jobPostingSchema = map[string]interface{}{
	"type": "object",
	"required": []string{
		"role_title", "company", "requirements", "keywords", "posting_language",
	},
	"properties": map[string]interface{}{
		"role_title":       map[string]interface{}{"type": "string"},
		"company":          map[string]interface{}{"type": "string"},
		"location":         map[string]interface{}{"type": "string"},
		"posting_language": map[string]interface{}{"type": "string", "enum": []string{"en", "de", "pl", "other"}},
		"requirements": map[string]interface{}{
			"type":     "array",
			"maxItems": 15,
			"items":    map[string]interface{}{"type": "string"},
		},
		"nice_to_have": map[string]interface{}{
			"type":     "array",
			"maxItems": 10,
			"items":    map[string]interface{}{"type": "string"},
		},
		"keywords": map[string]interface{}{
			"type":     "array",
			"maxItems": 20,
			"items":    map[string]interface{}{"type": "string"},
		},
	},
}

var workSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"roles"},
	"properties": map[string]interface{}{
		"roles": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"maxItems": 4,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"date_range", "employer", "title", "bullets"},
				"properties": map[string]interface{}{
					"date_range": map[string]interface{}{"type": "string"},
					"employer":   map[string]interface{}{"type": "string"},
					"location":   map[string]interface{}{"type": "string"},
					"title":      map[string]interface{}{"type": "string"},
					"bullets": map[string]interface{}{
						"type":     "array",
						"minItems": 2,
						"maxItems": 4,
						"items":    map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	},
}

var skillsSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"it_ai_skills", "technical_operational_skills"},
	"properties": map[string]interface{}{
		"it_ai_skills": map[string]interface{}{
			"type":     "array",
			"minItems": 5,
			"maxItems": 8,
			"items":    map[string]interface{}{"type": "string"},
		},
		"technical_operational_skills": map[string]interface{}{
			"type":     "array",
			"minItems": 5,
			"maxItems": 8,
			"items":    map[string]interface{}{"type": "string"},
		},
	},
}

var furtherSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"projects"},
	"properties": map[string]interface{}{
		"projects": map[string]interface{}{
			"type":     "array",
			"maxItems": 3,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"organization", "title"},
				"properties": map[string]interface{}{
					"date_range":   map[string]interface{}{"type": "string"},
					"organization": map[string]interface{}{"type": "string"},
					"title":        map[string]interface{}{"type": "string"},
					"bullets": map[string]interface{}{
						"type":     "array",
						"maxItems": 3,
						"items":    map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	},
}

var educationSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"education"},
	"properties": map[string]interface{}{
		"education": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"maxItems": 3,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"date_range", "institution", "title"},
				"properties": map[string]interface{}{
					"date_range":  map[string]interface{}{"type": "string"},
					"institution": map[string]interface{}{"type": "string"},
					"title":       map[string]interface{}{"type": "string"},
					"details": map[string]interface{}{
						"type":     "array",
						"maxItems": 2,
						"items":    map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	},
}

var translateSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"cv"},
	"properties": map[string]interface{}{
		"cv": map[string]interface{}{
			"type": "object",
			"description": "The full CV object with every human-readable text field translated. " +
				"Keys, dates, emails, phone numbers, URLs and proper nouns stay unchanged.",
		},
	},
}

var coverLetterSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"markdown"},
	"properties": map[string]interface{}{
		"subject":  map[string]interface{}{"type": "string"},
		"markdown": map[string]interface{}{"type": "string"},
	},
}
