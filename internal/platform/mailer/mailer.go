// Copyright (c) 2026 Veloria. All rights reserved.
// Author: dev@veloria.shop

/*
Package mailer dispatches transactional account emails.

It implements the domain-defined Notifier collaborator with two backends:

  - SMTP: Real delivery via a configured relay (production).
  - Log: Structured-log-only delivery for local development.

Delivery is fire-and-forget from the service's perspective: the auth flows
never fail because an email could not be sent.
*/
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// # Message Kinds

const (
	subjectResetRequest      = "Reset your Veloria password"
	subjectResetConfirmation = "Your Veloria password was changed"
	subjectWelcome           = "Welcome to Veloria"
)

// # SMTP Backend

// SMTPMailer sends account emails through a standard SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	logger   *slog.Logger
}

// NewSMTPMailer constructs a mailer bound to the given relay.
func NewSMTPMailer(host, port, username, password, from string, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

/*
SendResetRequest emails a password-reset link to the account holder.

Parameters:
  - context: context.Context
  - email: string (recipient)
  - resetURL: string (link embedding the user ID and token)

Returns:
  - error: Relay or formatting failures
*/
func (mailer *SMTPMailer) SendResetRequest(context context.Context, email, resetURL string) error {
	body := fmt.Sprintf(
		"We received a request to reset the password for your Veloria account.\r\n\r\n"+
			"Follow this link to choose a new password:\r\n%s\r\n\r\n"+
			"The link expires in one hour. If you did not request this, you can ignore this email.\r\n",
		resetURL,
	)
	return mailer.send(email, subjectResetRequest, body)
}

/*
SendResetConfirmation emails a notice that the account password was changed.

Parameters:
  - context: context.Context
  - email: string (recipient)

Returns:
  - error: Relay or formatting failures
*/
func (mailer *SMTPMailer) SendResetConfirmation(context context.Context, email string) error {
	body := "The password for your Veloria account was just changed.\r\n\r\n" +
		"If this was not you, contact support immediately.\r\n"
	return mailer.send(email, subjectResetConfirmation, body)
}

/*
SendWelcome emails an onboarding greeting to a freshly registered account.

Parameters:
  - context: context.Context
  - email: string (recipient)
  - firstName: string

Returns:
  - error: Relay or formatting failures
*/
func (mailer *SMTPMailer) SendWelcome(context context.Context, email, firstName string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nWelcome to Veloria. Happy shopping!\r\n", firstName)
	return mailer.send(email, subjectWelcome, body)
}

// send assembles RFC 5322 headers and pushes the message through the relay.
func (mailer *SMTPMailer) send(to, subject, body string) error {
	message := strings.Join([]string{
		"From: " + mailer.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := mailer.host + ":" + mailer.port

	var auth smtp.Auth
	if mailer.username != "" {
		auth = smtp.PlainAuth("", mailer.username, mailer.password, mailer.host)
	}

	if err := smtp.SendMail(addr, auth, mailer.from, []string{to}, []byte(message)); err != nil {
		mailer.logger.Error("mailer_send_failed",
			slog.String("subject", subject),
			slog.Any("error", err),
		)
		return fmt.Errorf("mailer: failed to send %q: %w", subject, err)
	}

	return nil
}

// # Log Backend

// LogMailer writes outbound emails to the structured log instead of a relay.
// Used in development, where reading the reset link from the log is enough.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer constructs a log-only mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendResetRequest logs the reset link instead of delivering it.
func (mailer *LogMailer) SendResetRequest(context context.Context, email, resetURL string) error {
	mailer.logger.InfoContext(context, "mail_reset_request",
		slog.String("to", email),
		slog.String("reset_url", resetURL),
	)
	return nil
}

// SendResetConfirmation logs the confirmation notice.
func (mailer *LogMailer) SendResetConfirmation(context context.Context, email string) error {
	mailer.logger.InfoContext(context, "mail_reset_confirmation", slog.String("to", email))
	return nil
}

// SendWelcome logs the onboarding greeting.
func (mailer *LogMailer) SendWelcome(context context.Context, email, firstName string) error {
	mailer.logger.InfoContext(context, "mail_welcome",
		slog.String("to", email),
		slog.String("first_name", firstName),
	)
	return nil
}
