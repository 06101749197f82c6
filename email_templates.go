package sessionauth

import (
	"bytes"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var emailLayout = template.Must(template.New("email").Parse(`<!doctype html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>{{.Heading}}</h2>
    <p>{{.Body}}</p>
    <p><a href="{{.URL}}" style="display:inline-block;padding:10px 18px;background:#2563eb;color:#ffffff;text-decoration:none;border-radius:6px;">{{.Action}}</a></p>
    <p style="font-size:12px;color:#616e7c;">If the button does not work, paste this link into your browser:<br>{{.URL}}</p>
  </body>
</html>`))

type emailContent struct {
	Heading string
	Body    string
	Action  string
	URL     string
}

func verifyEmailURL(origin, code string) string {
	return strings.TrimRight(origin, "/") + "/email/verify/" + url.PathEscape(code)
}

func passwordResetURL(origin, code string, expiresAt time.Time) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("exp", strconv.FormatInt(expiresAt.UnixMilli(), 10))
	return strings.TrimRight(origin, "/") + "/password/reset?" + q.Encode()
}

func verifyEmailMessage(to, link string) (Email, error) {
	return renderEmail(to, "Verify Email Address", emailContent{
		Heading: "Confirm your email address",
		Body:    "Thanks for signing up. Confirm your email address to finish setting up your account.",
		Action:  "Verify email",
		URL:     link,
	}, "Click on the link to verify your email address: "+link)
}

func passwordResetMessage(to, link string) (Email, error) {
	return renderEmail(to, "Password Reset Request", emailContent{
		Heading: "Reset your password",
		Body:    "We received a request to reset your password. The link expires in one hour.",
		Action:  "Reset password",
		URL:     link,
	}, "You requested a password reset. Click on the link to reset your password: "+link)
}

func renderEmail(to, subject string, content emailContent, text string) (Email, error) {
	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, content); err != nil {
		return Email{}, err
	}
	return Email{
		To:      to,
		Subject: subject,
		Text:    text,
		HTML:    buf.String(),
	}, nil
}
