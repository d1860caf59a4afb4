// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Service sends security notifications to account owners.
type Service struct {
	cfg     *config.SMTPConfig
	deliver func(*mail.Msg) error
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	s.deliver = s.dialAndSend
	return s, nil
}

// RecoveryCodeUsed tells the user that a backup code was redeemed.
func (s *Service) RecoveryCodeUsed(ctx context.Context, toEmail string, remaining int) error {
	subject := i18n.T(ctx, "email_recovery_code_used_subject")
	body := i18n.TData(ctx, "email_recovery_code_used_body", map[string]any{
		"Remaining": remaining,
		"URL":       s.baseURL,
	})
	return s.send(toEmail, subject, body)
}

// TwoFactorDisabled tells the user that two-factor authentication was turned off.
func (s *Service) TwoFactorDisabled(ctx context.Context, toEmail string) error {
	subject := i18n.T(ctx, "email_two_factor_disabled_subject")
	body := i18n.TData(ctx, "email_two_factor_disabled_body", map[string]any{
		"URL": s.baseURL,
	})
	return s.send(toEmail, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg, err := s.buildMessage(to, subject, body)
	if err != nil {
		return err
	}
	return s.deliver(msg)
}

func (s *Service) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

// dialAndSend sends a message via SMTP using go-mail.
func (s *Service) dialAndSend(msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Use implicit TLS (SSL) for port 465, STARTTLS for others
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
