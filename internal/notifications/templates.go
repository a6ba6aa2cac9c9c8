package notifications

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"rental_app_backend/internal/models"
	"rental_app_backend/pkg/utils"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
	sms     *template.Template
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=zero").Parse(text))
}

var templates = map[Kind]messageTemplate{
	KindSubmissionReceived: {
		subject: mustTemplate("subject", "Application received: {{.ApplicationID}}"),
		body: mustTemplate("body", `Hi {{.Name}},

Thank you for applying{{if .Property}} for {{.Property}}{{end}}. Your application ID is {{.ApplicationID}}.

Next step: pay the application fee and include your application ID in the payment memo.
You can follow your application at any time with this ID.

Choice Properties`),
	},
	KindPaymentReceived: {
		subject: mustTemplate("subject", "Payment received for {{.ApplicationID}}"),
		body: mustTemplate("body", `Hi {{.Name}},

We have received your application fee for {{.ApplicationID}}. Your application is now under review.

Choice Properties`),
		sms: mustTemplate("sms", "Choice Properties: payment received for {{.ApplicationID}}. Your application is under review."),
	},
	KindStatusChanged: {
		subject: mustTemplate("subject", "Application {{.ApplicationID}}: {{.Status}}"),
		body: mustTemplate("body", `Hi {{.Name}},

The status of your application {{.ApplicationID}} is now: {{.Status}}.
{{if .Note}}
Note from our team: {{.Note}}
{{end}}
Choice Properties`),
		sms: mustTemplate("sms", "Choice Properties: application {{.ApplicationID}} is now {{.Status}}."),
	},
	KindIDRecovery: {
		subject: mustTemplate("subject", "Your Choice Properties application ID"),
		body: mustTemplate("body", `Hello,

You asked us to resend your application ID. Applications on file for this email:
{{range .ApplicationIDs}}
  - {{.}}{{end}}

If you did not request this, you can ignore this email.

Choice Properties`),
	},
}

type templateData struct {
	Name           string
	ApplicationID  string
	Property       string
	Status         string
	Note           string
	ApplicationIDs []string
}

func render(kind Kind, data templateData) (subject, body, sms string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", "", fmt.Errorf("no template for %q", kind)
	}
	exec := func(t *template.Template) (string, error) {
		if t == nil {
			return "", nil
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", err
		}
		return strings.TrimSpace(buf.String()), nil
	}
	if subject, err = exec(tmpl.subject); err != nil {
		return "", "", "", fmt.Errorf("render %s subject: %w", kind, err)
	}
	if body, err = exec(tmpl.body); err != nil {
		return "", "", "", fmt.Errorf("render %s body: %w", kind, err)
	}
	if sms, err = exec(tmpl.sms); err != nil {
		return "", "", "", fmt.Errorf("render %s sms: %w", kind, err)
	}
	return subject, body, sms, nil
}

func applicationMessage(kind Kind, app *models.Application) (Message, error) {
	data := templateData{
		Name:          app.ApplicantName,
		ApplicationID: app.ApplicationID,
		Property:      utils.DerefString(app.PropertyAddress),
		Status:        app.ApplicationStatus.Label(),
		Note:          utils.DerefString(app.StatusNote),
	}
	subject, body, sms, err := render(kind, data)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Kind:          kind,
		ApplicationID: app.ApplicationID,
		To:            app.ApplicantEmail,
		Subject:       subject,
		Body:          body,
	}
	if sms != "" && app.FormData.Bool("contactSMS") && app.ApplicantPhone != nil && *app.ApplicantPhone != "" {
		msg.SMSTo = toE164(*app.ApplicantPhone)
		msg.SMSBody = sms
	}
	return msg, nil
}

// SubmissionReceived is sent after a new application is stored.
func SubmissionReceived(app *models.Application) (Message, error) {
	return applicationMessage(KindSubmissionReceived, app)
}

// PaymentReceived is sent when an admin records the fee.
func PaymentReceived(app *models.Application) (Message, error) {
	return applicationMessage(KindPaymentReceived, app)
}

// StatusChanged is sent when an admin changes the application status.
func StatusChanged(app *models.Application) (Message, error) {
	return applicationMessage(KindStatusChanged, app)
}

// IDRecovery lists every application id on file for email.
func IDRecovery(email string, applicationIDs []string) (Message, error) {
	subject, body, _, err := render(KindIDRecovery, templateData{ApplicationIDs: applicationIDs})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindIDRecovery, To: email, Subject: subject, Body: body}, nil
}

// toE164 assumes North American numbers when no country code is present.
func toE164(phone string) string {
	d := utils.DigitsOnly(phone)
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	case strings.HasPrefix(strings.TrimSpace(phone), "+"):
		return "+" + d
	}
	return d
}
