// Package smtp delivers OTP emails over SMTP and classifies failures into
// domain delivery kinds.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
	"github.com/AVISH911/donorhub-blood-donation/internal/pkg/validate"
)

type Gateway struct {
	host     string
	port     string
	from     string
	username string
	password string
	appName  string
}

func NewGateway(cfg *config.Config) *Gateway {
	return &Gateway{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		appName:  cfg.AppName,
	}
}

// Configured reports whether the gateway has enough settings to attempt a send.
// Credentials are optional but must come as a pair.
func (g *Gateway) Configured() bool {
	if g.host == "" || g.port == "" || g.from == "" {
		return false
	}
	return (g.username == "") == (g.password == "")
}

// Send delivers code to email. Every error is a *domain.DeliveryError.
func (g *Gateway) Send(ctx context.Context, email, code string, validity time.Duration) error {
	if !validate.Email(email) {
		return domain.NewDeliveryError(domain.DeliveryInvalidEmail, fmt.Errorf("invalid recipient %q", email))
	}
	if validate.Var(code, validate.TagCode) != nil {
		return domain.NewDeliveryError(domain.DeliveryInvalidCode, errors.New("code must be 6 digits"))
	}
	if !g.Configured() {
		return domain.NewDeliveryError(domain.DeliveryNotConfigured, errors.New("smtp host, from address or credentials missing"))
	}

	msg, err := buildMessage(g.from, email, g.appName, code, validity, time.Now())
	if err != nil {
		return domain.NewDeliveryError(domain.DeliverySendFailed, err)
	}
	if err := g.send(ctx, email, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return classify(err)
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, to string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(g.host, g.port))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Closing the connection unblocks any in-flight read when ctx ends first.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, g.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: g.host}); err != nil {
			return err
		}
	}
	if g.username != "" {
		if err := c.Auth(smtp.PlainAuth("", g.username, g.password, g.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(g.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// classify maps SMTP replies onto delivery kinds; network faults fall through
// to domain.ClassifyDeliveryError.
func classify(err error) *domain.DeliveryError {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535, 538:
			return domain.NewDeliveryError(domain.DeliveryAuthFailed, err)
		case 421:
			return domain.NewDeliveryError(domain.DeliveryConnectionFailed, err)
		}
		return domain.NewDeliveryError(domain.DeliverySendFailed, err)
	}
	return domain.ClassifyDeliveryError(err)
}
