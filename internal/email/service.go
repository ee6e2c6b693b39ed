// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-projectmate"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type otpData struct {
	AppName string
	Code    string
	Minutes int
}

type passwordChangedData struct {
	AppName string
}

// SendOTPEmail sends the password-reset code to the recipient.
func (s *Service) SendOTPEmail(to, code string) error {
	data := otpData{
		AppName: "ProjectMate",
		Code:    code,
		Minutes: 10,
	}

	subject := "ProjectMate OTP Verification"
	html, err := renderTemplate(otpEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render otp template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendPasswordChangedEmail notifies the recipient that the credential was
// replaced.
func (s *Service) SendPasswordChangedEmail(to string) error {
	data := passwordChangedData{AppName: "ProjectMate"}

	subject := "Your ProjectMate Password Has Been Changed"
	html, err := renderTemplate(passwordChangedEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render password changed template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const otpEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} OTP Verification</title>
</head>
<body>
    <div style="font-family: Arial, sans-serif; background:#f8f9fa; padding:20px; border-radius:8px; max-width:400px; margin:auto;">
        <h2 style="color:#6A0DAD; text-align:center;">{{.AppName}}</h2>
        <p style="font-size:16px; text-align:center;">Your OTP for password reset:</p>
        <h1 style="text-align:center; color:#6A0DAD; letter-spacing:4px;">{{.Code}}</h1>
        <p style="text-align:center; color:#555;">This OTP will expire in <strong>{{.Minutes}} minutes</strong>.</p>
    </div>
</body>
</html>`

const passwordChangedEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} Password Changed</title>
</head>
<body>
    <div style="font-family: Arial, sans-serif; background:#f8f9fa; padding:20px; border-radius:8px; max-width:400px; margin:auto;">
        <h2 style="color:#6A0DAD; text-align:center;">{{.AppName}}</h2>
        <p style="text-align:center; font-size:16px;">Your password has been changed successfully.</p>
        <p style="text-align:center; color:#555;">If you did not request this change, please contact support immediately.</p>
    </div>
</body>
</html>`
