package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// Language display names for prompt text
var languageNames = map[string]string{
	"en": "English",
	"de": "German",
	"pl": "Polish",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

const jobPostingSystemPrompt = `You extract structured facts from job postings for résumé tailoring.
Work only with what the posting states. Never infer requirements that are not written down.
Keep each requirement and keyword short, one concept each.`

func buildJobPostingPrompt(postingText string) string {
	return fmt.Sprintf("Extract the structured summary from this job posting:\n\n%s", postingText)
}

const workSystemPrompt = `You tailor the work experience section of a résumé to a specific job posting.
Rules:
- Select 3-4 of the candidate's existing roles, most relevant first. Never invent a role, employer or date range.
- Rewrite 2-4 bullets per role, 8-12 bullets in total across all roles.
- Every bullet must describe something the source material supports. No invented achievements, numbers or technologies.
- Each bullet is one sentence, at most 200 characters, ideally under 100.
- Start bullets with a strong verb and weave in posting keywords only where they genuinely fit.
- Write in the target language.`

func buildWorkPrompt(cv *models.CVData, posting *models.JobPosting, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n\n", languageName(lang))
	b.WriteString("Job posting summary:\n")
	b.WriteString(postingSummary(posting))
	b.WriteString("\n\nCandidate's work experience (the only allowed source material):\n")
	writeJSONSection(&b, cv.WorkExperience)
	if cv.Profile != "" {
		b.WriteString("\nCandidate profile for context:\n")
		b.WriteString(cv.Profile)
		b.WriteString("\n")
	}
	return b.String()
}

const skillsSystemPrompt = `You produce the two skill lists of a résumé tailored to a job posting.
Rules:
- "it_ai_skills" holds software, data and AI tooling. "technical_operational_skills" holds domain, process and operational competences.
- 5-8 entries per list, no entry in both lists.
- Only list skills the candidate's material supports. Posting keywords may guide selection and phrasing, never invention.
- Each entry is at most 50 characters, no sentences.
- Write in the target language.`

func buildSkillsPrompt(cv *models.CVData, posting *models.JobPosting, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n\n", languageName(lang))
	b.WriteString("Job posting summary:\n")
	b.WriteString(postingSummary(posting))
	b.WriteString("\n\nCandidate material (the only allowed source):\n")
	writeJSONSection(&b, map[string]interface{}{
		"profile":                      cv.Profile,
		"work_experience":              cv.WorkExperience,
		"further_experience":           cv.FurtherExperience,
		"education":                    cv.Education,
		"existing_it_ai_skills":        cv.ITAISkills,
		"existing_technical_skills":    cv.TechnicalOperationalSkills,
		"certifications_and_trainings": append(append([]string{}, cv.Certifications...), cv.Trainings...),
	})
	return b.String()
}

const furtherSystemPrompt = `You tailor the further experience section (volunteering, side projects, community work) of a résumé.
Rules:
- Select at most 3 of the candidate's existing entries, most relevant to the posting first. Never invent entries.
- Up to 3 bullets per entry, each at most 200 characters.
- Omit entries that add nothing for this posting; an empty list is valid.
- Write in the target language.`

func buildFurtherPrompt(cv *models.CVData, posting *models.JobPosting, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n\n", languageName(lang))
	b.WriteString("Job posting summary:\n")
	b.WriteString(postingSummary(posting))
	b.WriteString("\n\nCandidate's further experience (the only allowed source):\n")
	writeJSONSection(&b, cv.FurtherExperience)
	return b.String()
}

const educationSystemPrompt = `You tidy the education section of a résumé.
Rules:
- Keep every entry the candidate provided; reorder newest first and normalize formatting.
- Never invent institutions, degrees or dates.
- Up to 2 short detail lines per entry, only when the source material supports them.
- Write in the target language.`

func buildEducationPrompt(cv *models.CVData, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n\n", languageName(lang))
	b.WriteString("Candidate's education entries:\n")
	writeJSONSection(&b, cv.Education)
	return b.String()
}

const translateSystemPrompt = `You translate résumé content between languages.
Rules:
- Translate every human-readable text value. Keep all JSON keys exactly as they are.
- Dates, email addresses, phone numbers, URLs, company names and proper nouns stay unchanged.
- Preserve the structure exactly: same arrays, same lengths, same order.
- Use standard professional register for résumés in the target language.`

func buildTranslatePrompt(cv *models.CVData, sourceLang, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate this CV from %s to %s. Return {\"cv\": ...} with the translated object.\n\n",
		languageName(sourceLang), languageName(targetLang))
	writeJSONSection(&b, cv)
	return b.String()
}

const coverLetterSystemPrompt = `You write a one-page cover letter as markdown for a specific job application.
Rules:
- Ground every claim in the CV. Never invent experience, qualifications or motivations presented as fact.
- Address the company and role from the posting. 3-4 short paragraphs, no bullet lists.
- Plain markdown: paragraphs only, no headings except an optional greeting line.
- Confident but factual tone, no clichés, no flattery padding.
- Write in the target language.`

func buildCoverLetterPrompt(cv *models.CVData, posting *models.JobPosting, lang string, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target language: %s\n\n", languageName(lang))
	b.WriteString("Job posting summary:\n")
	b.WriteString(postingSummary(posting))
	b.WriteString("\n\nCandidate CV:\n")
	writeJSONSection(&b, cv)
	if notes != "" {
		b.WriteString("\nNotes from the candidate:\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}
	return b.String()
}

// postingSummary renders the cached posting extraction for prompts,
// falling back to raw text when extraction has not run.
func postingSummary(posting *models.JobPosting) string {
	if posting == nil {
		return "(no posting provided)"
	}
	if posting.RoleTitle == "" && posting.RawText != "" {
		return posting.RawText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\nCompany: %s\n", posting.RoleTitle, posting.Company)
	if posting.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", posting.Location)
	}
	if len(posting.Requirements) > 0 {
		b.WriteString("Requirements:\n")
		for _, r := range posting.Requirements {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(posting.NiceToHave) > 0 {
		b.WriteString("Nice to have:\n")
		for _, r := range posting.NiceToHave {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(posting.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(posting.Keywords, ", "))
	}
	return b.String()
}

func writeJSONSection(b *strings.Builder, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		b.WriteString("{}")
		return
	}
	b.Write(data)
	b.WriteString("\n")
}
