package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/orbisplace/orbis-api/config"
)

//go:embed templates/emails/*.html
var emailTemplates embed.FS

// Mailer sends the transactional emails of the auth flow.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, token string) error
	SendPasswordResetEmail(ctx context.Context, to, username, token string) error
}

type EmailService struct {
	cfg       config.SMTPConfig
	baseURL   string
	from      *mail.Address
	templates *template.Template
}

// NewEmailService validates the SMTP settings and parses the templates once.
func NewEmailService(cfg config.SMTPConfig, appBaseURL string) (*EmailService, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", cfg.Port)
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp from address %q: %w", cfg.From, err)
	}
	if _, err := url.ParseRequestURI(appBaseURL); err != nil {
		return nil, fmt.Errorf("invalid app base url %q: %w", appBaseURL, err)
	}
	t, err := template.ParseFS(emailTemplates, "templates/emails/*.html")
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга шаблонов писем: %w", err)
	}
	return &EmailService{
		cfg:       cfg,
		baseURL:   strings.TrimSuffix(appBaseURL, "/"),
		from:      from,
		templates: t,
	}, nil
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, to, username, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, url.QueryEscape(token))
	return s.send(ctx, to, "Verify your Orbis account", "verify_email.html", username, link)
}

func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, username, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
	return s.send(ctx, to, "Reset your Orbis password", "password_reset.html", username, link)
}

func (s *EmailService) send(ctx context.Context, to, subject, tmpl, username, link string) error {
	body, err := s.GenerateEmailBody(tmpl, struct {
		Username string
		Link     string
	}{Username: username, Link: link})
	if err != nil {
		return err
	}
	return s.SendEmail(ctx, []string{to}, subject, body)
}

func (s *EmailService) GenerateEmailBody(name string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("ошибка выполнения шаблона %s: %w", name, err)
	}
	return body.String(), nil
}

// buildMessage assembles the RFC 5322 message with an HTML body.
func (s *EmailService) buildMessage(to []string, subject, body string) []byte {
	var msg bytes.Buffer
	msg.WriteString("From: " + s.from.String() + "\r\n")
	msg.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	msg.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")
	return msg.Bytes()
}

// SendEmail delivers over implicit TLS on port 465 and STARTTLS otherwise.
func (s *EmailService) SendEmail(ctx context.Context, to []string, subject string, body string) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	tlsconfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{}
	var conn net.Conn
	var err error
	if s.cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsconfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("ошибка соединения SMTP: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
	}
	defer client.Close()

	if s.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsconfig); err != nil {
				return fmt.Errorf("ошибка команды STARTTLS: %w", err)
			}
		}
	}

	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
		}
	}

	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("ошибка RCPT TO: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}
	if _, err := w.Write(s.buildMessage(to, subject, body)); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}
	return client.Quit()
}
