package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/kycdesk/intake-service/internal/formdata"
)

// FileLine is one attached document listed in a notification.
type FileLine struct {
	Label string
	Name  string
}

// AdminNotification is the content of the staff email sent per write.
type AdminNotification struct {
	CategoryLabel string
	Action        string
	ApplicationID string
	FormKey       string
	Contact       formdata.Contact
	Fields        []formdata.Field
	Files         []FileLine
	EditUntil     time.Time
	At            time.Time
}

// ApplicantConfirmation is the content of the applicant email.
type ApplicantConfirmation struct {
	Name          string
	CategoryLabel string
	Action        string
	ApplicationID string
	EditURL       string
	EditUntil     time.Time
}

// PasswordReset is the content of the reset-link email.
type PasswordReset struct {
	Name      string
	ResetURL  string
	ExpiresIn time.Duration
}

var funcs = template.FuncMap{
	"date":  func(t time.Time) string { return t.UTC().Format("2 Jan 2006 15:04 MST") },
	"lower": strings.ToLower,
}

var (
	adminHTML = template.Must(template.New("admin").Funcs(funcs).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{.CategoryLabel}} application {{lower .Action}}</h2>
<p>Application <strong>{{.ApplicationID}}</strong> ({{.FormKey}}) was {{lower .Action}} on {{date .At}}.</p>
{{with .Contact}}<p>{{if .Name}}Applicant: {{.Name}}<br>{{end}}{{if .Email}}Email: {{.Email}}<br>{{end}}{{if .Phone}}Phone: {{.Phone}}{{end}}</p>{{end}}
<table cellpadding="4" cellspacing="0" border="1" style="border-collapse:collapse;font-size:13px">
{{range .Fields}}<tr><th align="left">{{.Label}}</th><td>{{.Value}}</td></tr>
{{end}}</table>
{{if .Files}}<h3>Documents</h3><ul>{{range .Files}}<li>{{.Label}}: {{.Name}}</li>{{end}}</ul>{{end}}
<p>The summary PDF and uploaded documents are attached. The applicant can edit until {{date .EditUntil}}.</p>
</body></html>`))

	applicantHTML = template.Must(template.New("applicant").Funcs(funcs).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<p>{{if .Name}}Dear {{.Name}},{{else}}Hello,{{end}}</p>
<p>Your {{.CategoryLabel}} application has been {{lower .Action}}. Your reference is <strong>{{.ApplicationID}}</strong>.</p>
<p>You can review and edit it until {{date .EditUntil}}:<br><a href="{{.EditURL}}">{{.EditURL}}</a></p>
<p>Keep this link private; anyone holding it can change your application.</p>
</body></html>`))

	resetHTML = template.Must(template.New("reset").Funcs(funcs).Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<p>{{if .Name}}Hi {{.Name}},{{else}}Hello,{{end}}</p>
<p>We received a request to reset your password. The link below is valid for {{.Minutes}} minutes:</p>
<p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
<p>If you did not ask for this, you can ignore this email.</p>
</body></html>`))
)

// Render renders the staff notification for the given recipients.
func (n AdminNotification) Render(to []string) (Message, error) {
	html, err := execute(adminHTML, n)
	if err != nil {
		return Message{}, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s application %s\n\n", n.CategoryLabel, strings.ToLower(n.Action))
	fmt.Fprintf(&text, "ID: %s\nForm: %s\nAt: %s\n", n.ApplicationID, n.FormKey, n.At.UTC().Format(time.RFC3339))
	if n.Contact.Name != "" {
		fmt.Fprintf(&text, "Applicant: %s\n", n.Contact.Name)
	}
	if n.Contact.Email != "" {
		fmt.Fprintf(&text, "Email: %s\n", n.Contact.Email)
	}
	if n.Contact.Phone != "" {
		fmt.Fprintf(&text, "Phone: %s\n", n.Contact.Phone)
	}
	text.WriteString("\n")
	for _, f := range n.Fields {
		fmt.Fprintf(&text, "%s: %s\n", f.Label(), f.Value)
	}
	if len(n.Files) > 0 {
		text.WriteString("\nDocuments:\n")
		for _, f := range n.Files {
			fmt.Fprintf(&text, "- %s: %s\n", f.Label, f.Name)
		}
	}

	subject := fmt.Sprintf("[%s] Application %s: %s", n.CategoryLabel, n.Action, n.ApplicationID)
	if n.Contact.Name != "" {
		subject += " (" + n.Contact.Name + ")"
	}
	return Message{To: to, Subject: subject, Text: text.String(), HTML: html}, nil
}

// Render renders the applicant confirmation.
func (c ApplicantConfirmation) Render(to string) (Message, error) {
	html, err := execute(applicantHTML, c)
	if err != nil {
		return Message{}, err
	}
	greeting := "Hello,"
	if c.Name != "" {
		greeting = "Dear " + c.Name + ","
	}
	text := fmt.Sprintf("%s\n\nYour %s application has been %s. Your reference is %s.\n\nYou can review and edit it until %s:\n%s\n",
		greeting, c.CategoryLabel, strings.ToLower(c.Action), c.ApplicationID,
		c.EditUntil.UTC().Format("2 Jan 2006 15:04 MST"), c.EditURL)

	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your %s application was %s", c.CategoryLabel, strings.ToLower(c.Action)),
		Text:    text,
		HTML:    html,
	}, nil
}

// Render renders the reset-link email.
func (p PasswordReset) Render(to string) (Message, error) {
	minutes := int(p.ExpiresIn.Minutes())
	html, err := execute(resetHTML, struct {
		PasswordReset
		Minutes int
	}{p, minutes})
	if err != nil {
		return Message{}, err
	}
	text := fmt.Sprintf("We received a request to reset your password.\nOpen this link within %d minutes:\n%s\n\nIf you did not ask for this, ignore this email.\n",
		minutes, p.ResetURL)
	return Message{To: []string{to}, Subject: "Reset your password", Text: text, HTML: html}, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
