package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

const verificationSubject = "Verify Your Email Address - Vent"

const verificationHTML = `<html>
<body>
  <p>Hello {{.Name}},</p>
  <p>Please click the link below to verify your email address:</p>
  <p><a href="{{.ActionURL}}">Verify my email</a></p>
  <p>If you didn't create an account, please ignore this email.</p>
  <p>Best regards,<br>Vent Team</p>
</body>
</html>`

const verificationText = `Hello %s,

Please click the link below to verify your email address:
%s

If you didn't create an account, please ignore this email.

Best regards,
Vent Team
`

const resetSubject = "Password Reset Request - Vent"

const resetHTML = `<html>
<body>
  <p>Hello {{.Name}},</p>
  <p>You requested a password reset. Please click the link below to reset your password:</p>
  <p><a href="{{.ActionURL}}">Reset my password</a></p>
  <p>If you didn't request this, please ignore this email.</p>
  <p>Best regards,<br>Vent Team</p>
</body>
</html>`

const resetText = `Hello %s,

You requested a password reset. Please click the link below to reset your password:
%s

If you didn't request this, please ignore this email.

Best regards,
Vent Team
`

var (
	verificationTmpl = template.Must(template.New("verification").Parse(verificationHTML))
	resetTmpl        = template.Must(template.New("reset").Parse(resetHTML))
)

type mailData struct {
	Name      string
	ActionURL string
}

// VerificationEmail renders the subject and both bodies of the
// email-verification mail.
func VerificationEmail(name, actionURL string) (subject, htmlBody, textBody string, err error) {
	var sb strings.Builder
	if err = verificationTmpl.Execute(&sb, mailData{Name: name, ActionURL: actionURL}); err != nil {
		return "", "", "", err
	}
	return verificationSubject, sb.String(), fmt.Sprintf(verificationText, name, actionURL), nil
}

// PasswordResetEmail renders the subject and both bodies of the
// password-reset mail.
func PasswordResetEmail(name, actionURL string) (subject, htmlBody, textBody string, err error) {
	var sb strings.Builder
	if err = resetTmpl.Execute(&sb, mailData{Name: name, ActionURL: actionURL}); err != nil {
		return "", "", "", err
	}
	return resetSubject, sb.String(), fmt.Sprintf(resetText, name, actionURL), nil
}
