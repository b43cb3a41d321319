package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// sectionLabels holds the rendered section headings per output language
type sectionLabels struct {
	Profile        string
	Work           string
	Further        string
	Education      string
	Languages      string
	ITSkills       string
	TechSkills     string
	Certifications string
	Trainings      string
	Publications   string
	Interests      string
	References     string
}

var labelsByLanguage = map[string]sectionLabels{
	"en": {
		Profile:        "Profile",
		Work:           "Work Experience",
		Further:        "Further Experience",
		Education:      "Education",
		Languages:      "Languages",
		ITSkills:       "IT & AI Skills",
		TechSkills:     "Technical & Operational Skills",
		Certifications: "Certifications",
		Trainings:      "Trainings",
		Publications:   "Publications",
		Interests:      "Interests",
		References:     "References",
	},
	"de": {
		Profile:        "Profil",
		Work:           "Berufserfahrung",
		Further:        "Weitere Erfahrung",
		Education:      "Ausbildung",
		Languages:      "Sprachen",
		ITSkills:       "IT- & KI-Kenntnisse",
		TechSkills:     "Technische & operative Kenntnisse",
		Certifications: "Zertifikate",
		Trainings:      "Weiterbildungen",
		Publications:   "Publikationen",
		Interests:      "Interessen",
		References:     "Referenzen",
	},
	"pl": {
		Profile:        "Profil",
		Work:           "Doświadczenie zawodowe",
		Further:        "Dodatkowe doświadczenie",
		Education:      "Wykształcenie",
		Languages:      "Języki",
		ITSkills:       "Umiejętności IT i AI",
		TechSkills:     "Umiejętności techniczne i operacyjne",
		Certifications: "Certyfikaty",
		Trainings:      "Szkolenia",
		Publications:   "Publikacje",
		Interests:      "Zainteresowania",
		References:     "Referencje",
	},
}

func labelsFor(lang string) sectionLabels {
	if l, ok := labelsByLanguage[lang]; ok {
		return l
	}
	return labelsByLanguage["en"]
}

type templateData struct {
	CV      *models.CVData
	Labels  sectionLabels
	Version string
}

// cvTemplate is the fixed A4 two-page layout. Page boxes are sized exactly
// 210x297mm; the height validator keeps content inside them before the
// renderer ever runs.
var cvTemplate = template.Must(template.New("cv").Funcs(template.FuncMap{
	"join": func(items []string, sep string) string { return strings.Join(items, sep) },
}).Parse(`<!DOCTYPE html>
<html lang="{{.CV.Language}}">
<head>
<meta charset="utf-8">
<meta name="generator" content="{{.Version}}">
<style>
  @page { size: A4; margin: 0; }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: "Helvetica Neue", Arial, sans-serif; font-size: 10pt; color: #1a1a2e; }
  .page { width: 210mm; height: 297mm; padding: 14mm 16mm; page-break-after: always; overflow: hidden; }
  .page:last-child { page-break-after: auto; }
  header { display: flex; justify-content: space-between; border-bottom: 2px solid #16324f; padding-bottom: 4mm; margin-bottom: 5mm; }
  h1 { font-size: 20pt; font-weight: 700; letter-spacing: 0.5px; }
  .contact { font-size: 9pt; line-height: 1.5; text-align: right; }
  .photo { width: 30mm; height: 38mm; object-fit: cover; border-radius: 2mm; margin-left: 6mm; }
  h2 { font-size: 11pt; text-transform: uppercase; letter-spacing: 1px; color: #16324f; border-bottom: 1px solid #c8d3de; margin: 5mm 0 2.5mm; padding-bottom: 1mm; }
  .entry { margin-bottom: 3mm; }
  .entry-head { display: flex; justify-content: space-between; }
  .entry-title { font-weight: 700; }
  .entry-org { font-style: italic; }
  .entry-dates { color: #5a6b7b; white-space: nowrap; }
  ul { margin: 1mm 0 0 5mm; }
  li { margin-bottom: 0.8mm; line-height: 1.35; }
  .skills { columns: 2; column-gap: 8mm; }
  .profile { line-height: 1.45; text-align: justify; }
  .langs span { display: inline-block; margin-right: 6mm; }
  .privacy { font-size: 7.5pt; color: #5a6b7b; margin-top: 6mm; line-height: 1.3; }
</style>
</head>
<body>
<div class="page">
  <header>
    <div>
      <h1>{{.CV.FullName}}</h1>
      {{- if .CV.TargetRole}}<div class="entry-org">{{.CV.TargetRole}}</div>{{end}}
    </div>
    <div class="contact">
      {{- if .CV.Email}}<div>{{.CV.Email}}</div>{{end}}
      {{- if .CV.Phone}}<div>{{.CV.Phone}}</div>{{end}}
      {{- range .CV.AddressLines}}<div>{{.}}</div>{{end}}
      {{- if .CV.Nationality}}<div>{{.CV.Nationality}}</div>{{end}}
      {{- if .CV.BirthDate}}<div>{{.CV.BirthDate}}</div>{{end}}
    </div>
    {{- if .CV.PhotoURL}}<img class="photo" src="{{.CV.PhotoURL}}" alt="">{{end}}
  </header>

  {{- if .CV.Profile}}
  <h2>{{.Labels.Profile}}</h2>
  <p class="profile">{{.CV.Profile}}</p>
  {{- end}}

  <h2>{{.Labels.Work}}</h2>
  {{- range .CV.WorkExperience}}
  <div class="entry">
    <div class="entry-head">
      <div><span class="entry-title">{{.Title}}</span> &mdash; <span class="entry-org">{{.Employer}}{{if .Location}}, {{.Location}}{{end}}</span></div>
      <div class="entry-dates">{{.DateRange}}</div>
    </div>
    <ul>{{range .Bullets}}<li>{{.}}</li>{{end}}</ul>
  </div>
  {{- end}}
</div>

<div class="page">
  {{- if .CV.FurtherExperience}}
  <h2>{{.Labels.Further}}</h2>
  {{- range .CV.FurtherExperience}}
  <div class="entry">
    <div class="entry-head">
      <div><span class="entry-title">{{.Title}}</span> &mdash; <span class="entry-org">{{.Organization}}</span></div>
      <div class="entry-dates">{{.DateRange}}</div>
    </div>
    {{- if .Bullets}}<ul>{{range .Bullets}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
  {{- end}}
  {{- end}}

  <h2>{{.Labels.Education}}</h2>
  {{- range .CV.Education}}
  <div class="entry">
    <div class="entry-head">
      <div><span class="entry-title">{{.Title}}</span> &mdash; <span class="entry-org">{{.Institution}}</span></div>
      <div class="entry-dates">{{.DateRange}}</div>
    </div>
    {{- if .Details}}<ul>{{range .Details}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
  {{- end}}

  {{- if .CV.ITAISkills}}
  <h2>{{.Labels.ITSkills}}</h2>
  <ul class="skills">{{range .CV.ITAISkills}}<li>{{.}}</li>{{end}}</ul>
  {{- end}}

  {{- if .CV.TechnicalOperationalSkills}}
  <h2>{{.Labels.TechSkills}}</h2>
  <ul class="skills">{{range .CV.TechnicalOperationalSkills}}<li>{{.}}</li>{{end}}</ul>
  {{- end}}

  {{- if .CV.Languages}}
  <h2>{{.Labels.Languages}}</h2>
  <p class="langs">{{range .CV.Languages}}<span>{{.Name}}{{if .Level}} ({{.Level}}){{end}}</span>{{end}}</p>
  {{- end}}

  {{- if .CV.Certifications}}
  <h2>{{.Labels.Certifications}}</h2>
  <ul>{{range .CV.Certifications}}<li>{{.}}</li>{{end}}</ul>
  {{- end}}

  {{- if .CV.Trainings}}
  <h2>{{.Labels.Trainings}}</h2>
  <ul>{{range .CV.Trainings}}<li>{{.}}</li>{{end}}</ul>
  {{- end}}

  {{- if .CV.Publications}}
  <h2>{{.Labels.Publications}}</h2>
  <ul>{{range .CV.Publications}}<li>{{.}}</li>{{end}}</ul>
  {{- end}}

  {{- if .CV.Interests}}
  <h2>{{.Labels.Interests}}</h2>
  <p>{{join .CV.Interests ", "}}</p>
  {{- end}}

  {{- if .CV.References}}
  <h2>{{.Labels.References}}</h2>
  <p>{{.CV.References}}</p>
  {{- end}}

  {{- if .CV.DataPrivacy}}
  <p class="privacy">{{.CV.DataPrivacy}}</p>
  {{- end}}
</div>
</body>
</html>
`))

// renderHTML produces the résumé HTML for one CV state
func renderHTML(cv *models.CVData, templateVersion string) (string, error) {
	if cv == nil {
		return "", fmt.Errorf("no cv data to render")
	}
	var buf bytes.Buffer
	err := cvTemplate.Execute(&buf, templateData{
		CV:      cv,
		Labels:  labelsFor(cv.Language),
		Version: templateVersion,
	})
	if err != nil {
		return "", fmt.Errorf("cv template: %w", err)
	}
	return buf.String(), nil
}
