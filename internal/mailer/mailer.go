// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package mailer delivers year-in-review report emails over SMTP. Messages
// are multipart/alternative with a short plain-text body and an HTML body
// carrying the report highlights and the tokenized share link.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/models"
)

const defaultTimeout = 30 * time.Second

// Mailer sends report emails. A nil *Mailer is a valid no-op handle; New
// returns nil when email is disabled.
type Mailer struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

// New builds a Mailer from config. Returns nil when the integration is
// disabled or not configured.
func New(cfg config.EmailConfig) (*Mailer, error) {
	if !cfg.Enabled || cfg.Host == "" {
		return nil, nil
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("email.from is required when email is enabled")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Mailer{cfg: cfg, timeout: timeout}, nil
}

// SendReport delivers one report email.
func (m *Mailer) SendReport(ctx context.Context, recipient, username string, stats *models.UserYearStats, reportURL string) error {
	if err := validateRecipient(recipient); err != nil {
		return err
	}

	subject := fmt.Sprintf("Your %d in review is ready", stats.Year)
	html, err := renderHTML(username, stats, reportURL)
	if err != nil {
		return fmt.Errorf("rendering report email: %w", err)
	}
	text := renderText(username, stats, reportURL)

	msg := m.buildMessage(recipient, subject, text, html)
	return m.sendSMTP(ctx, recipient, msg)
}

func validateRecipient(addr string) error {
	at := strings.IndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 || strings.ContainsAny(addr, " \r\n") {
		return fmt.Errorf("invalid recipient address %q", addr)
	}
	return nil
}

// buildMessage constructs the MIME message with headers.
func (m *Mailer) buildMessage(to, subject, bodyText, bodyHTML string) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: Rewatched <%s>\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(bodyText)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(bodyHTML)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

// sendSMTP performs the SMTP conversation: connect, optional STARTTLS,
// optional auth, one recipient, one message.
func (m *Mailer) sendSMTP(ctx context.Context, to, msg string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if m.cfg.StartTLS {
		tlsConfig := &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// QUIT failures after the message was accepted are not delivery errors.
	_ = client.Quit()
	return nil
}

// IsTransient reports whether a delivery error looks retryable. Used by
// callers deciding whether a resend might help.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{"connect", "timeout", "deadline", "rate", "limit", "temporar"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func hoursWatched(stats *models.UserYearStats) int {
	return int(math.Round(float64(stats.TotalMinutes) / 60))
}

func renderText(username string, stats *models.UserYearStats, reportURL string) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", username)
	fmt.Fprintf(&b, "Your %d in review is ready: %d plays, about %d hours watched.\r\n",
		stats.Year, stats.TotalPlays, hoursWatched(stats))
	if len(stats.TopShows) > 0 {
		fmt.Fprintf(&b, "Your most watched show was %s.\r\n", stats.TopShows[0].Title)
	}
	if len(stats.TopMovies) > 0 {
		fmt.Fprintf(&b, "Your most watched movie was %s.\r\n", stats.TopMovies[0].Title)
	}
	fmt.Fprintf(&b, "\r\nSee the full report: %s\r\n", reportURL)
	return b.String()
}
