package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttpl "text/template"
	"time"
)

// Mailer renders the verification and reset emails and hands them to a
// Sender.
type Mailer struct {
	sender  Sender
	baseURL string
}

// New builds a Mailer whose links point at baseURL (the storefront).
func New(sender Sender, baseURL string) *Mailer {
	return &Mailer{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

type linkVars struct {
	Name string
	Link string
	TTL  string
}

var (
	verifyHTML = template.Must(template.New("verify_html").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Please confirm your email address to activate your account.</p>
<p><a href="{{.Link}}" style="background:#10B981;color:#fff;padding:12px 24px;text-decoration:none;border-radius:6px;">Verify Email</a></p>
<p>Or copy this link into your browser:</p>
<p style="word-break: break-all; color: #10B981; font-size: 14px;">{{.Link}}</p>
<p>This link expires in {{.TTL}}.</p>
</body></html>`))
	verifyText = texttpl.Must(texttpl.New("verify_txt").Parse(`Welcome{{if .Name}}, {{.Name}}{{end}}!

Confirm your email address by opening:
{{.Link}}

This link expires in {{.TTL}}.
`))
	resetHTML = template.Must(template.New("reset_html").Parse(`<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #333;">
<h2>Password Reset Request</h2>
<p>Hi{{if .Name}} {{.Name}}{{end}}, we received a request to reset your password.</p>
<p><a href="{{.Link}}" style="background:#4F46E5;color:#fff;padding:12px 24px;text-decoration:none;border-radius:6px;">Reset Password</a></p>
<p>Or copy this link into your browser:</p>
<p style="word-break: break-all; color: #4F46E5; font-size: 14px;">{{.Link}}</p>
<p>This link expires in {{.TTL}}. If you did not request a reset you can ignore this email.</p>
</body></html>`))
	resetText = texttpl.Must(texttpl.New("reset_txt").Parse(`Hi{{if .Name}} {{.Name}}{{end}},

Reset your password by opening:
{{.Link}}

This link expires in {{.TTL}}. If you did not request a reset you can ignore this email.
`))
)

// SendVerification mails the email-verification link.
func (m *Mailer) SendVerification(to, name, token string, ttl time.Duration) error {
	v := linkVars{Name: name, Link: m.link("/verify-email", token, to), TTL: humanTTL(ttl)}
	return m.send(to, "Verify Your Email Address", verifyHTML, verifyText, v)
}

// SendPasswordReset mails the password-reset link.
func (m *Mailer) SendPasswordReset(to, name, token string, ttl time.Duration) error {
	v := linkVars{Name: name, Link: m.link("/reset-password", token, to), TTL: humanTTL(ttl)}
	return m.send(to, "Password Reset Request", resetHTML, resetText, v)
}

func (m *Mailer) link(path, token, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return m.baseURL + path + "?" + q.Encode()
}

func (m *Mailer) send(to, subject string, h *template.Template, t *texttpl.Template, v linkVars) error {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, v); err != nil {
		return fmt.Errorf("render %s: %w", h.Name(), err)
	}
	if err := t.Execute(&tb, v); err != nil {
		return fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return m.sender.Send(to, subject, hb.String(), tb.String())
}

func humanTTL(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		n := int(d / (24 * time.Hour))
		if n == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", n)
	case d >= time.Hour && d%time.Hour == 0:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	default:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
}
