package notification

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/upb/internship-placement/models"
)

// EmailData populates the decision templates
type EmailData struct {
	StudentName     string
	InternshipTitle string
	CompanyName     string
	ContactEmail    string
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var emailTemplates = map[models.ApplicationStatus]emailTemplate{
	models.StatusAccepted: {
		subject: template.Must(template.New("accepted_subject").Parse(
			`Your application for {{.InternshipTitle}} at {{.CompanyName}} was accepted`)),
		body: template.Must(template.New("accepted_body").Parse(`Hi {{.StudentName}},

Good news: {{.CompanyName}} has accepted your application for "{{.InternshipTitle}}".
{{if .ContactEmail}}
The company will be in touch about next steps. You can also reach them at {{.ContactEmail}}.
{{else}}
The company will be in touch about next steps.
{{end}}
Congratulations!
`)),
	},
	models.StatusRejected: {
		subject: template.Must(template.New("rejected_subject").Parse(
			`Update on your application for {{.InternshipTitle}} at {{.CompanyName}}`)),
		body: template.Must(template.New("rejected_body").Parse(`Hi {{.StudentName}},

Thank you for applying to "{{.InternshipTitle}}" at {{.CompanyName}}.
After reviewing your application, the company has decided not to move forward.
{{if .ContactEmail}}
For questions you can contact {{.ContactEmail}}.
{{end}}
We encourage you to keep applying to other openings.
`)),
	},
}

// RenderEmail renders the subject and body for an accepted or rejected decision
func RenderEmail(outcome models.ApplicationStatus, data EmailData) (subject, body string, err error) {
	tpl, ok := emailTemplates[outcome]
	if !ok {
		return "", "", fmt.Errorf("no email template for status %q", outcome)
	}

	var sb, bb bytes.Buffer
	if err := tpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}

// InAppMessage is the line appended to the student's notification list
func InAppMessage(outcome models.ApplicationStatus, internshipTitle, companyName string) string {
	if outcome == models.StatusAccepted {
		return fmt.Sprintf("Your application for %q at %s has been accepted.", internshipTitle, companyName)
	}
	return fmt.Sprintf("Your application for %q at %s was not successful.", internshipTitle, companyName)
}
