package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"retail-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Message is one rendered HTML mail
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers rendered messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail through an SMTP relay
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: util.GetLogger()}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("Mail not sent, SMTP disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

var (
	otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; color: #333;">
  <h2>SuperMarket Password Reset</h2>
  <p>Dear {{.Name}},</p>
  <p>Your One-Time Password (OTP) for resetting your password is:</p>
  <h3 style="color: #007bff; font-size: 24px;">{{.OTP}}</h3>
  <p>This OTP is valid for <b>{{.Validity}}</b>. Please do not share it with anyone.</p>
  <p>Thanks,<br><b>SuperMarket Support Team</b></p>
</div>`))

	decisionTemplate = template.Must(template.New("decision").Parse(`<div style="font-family: Arial, sans-serif; color: #333;">
  <h2>Order {{.BillID}}</h2>
  <p>Dear {{.Name}},</p>
  {{if .Approved}}<p>Your order of <b>{{.Total}}</b> has been approved.</p>
  {{else}}<p>Your order has been rejected. The reserved stock has been returned to the catalog.</p>
  {{end}}<p>Thanks,<br><b>SuperMarket Support Team</b></p>
</div>`))

	receivedTemplate = template.Must(template.New("received").Parse(`<div style="font-family: Arial, sans-serif; color: #333;">
  <h2>Order {{.BillID}} received</h2>
  <p>Dear {{.Name}},</p>
  <p>We received your order of <b>{{.Lines}}</b> item(s) totalling <b>{{.Total}}</b>. It is waiting for approval.</p>
  <p>Thanks,<br><b>SuperMarket Support Team</b></p>
</div>`))
)

// Mailer renders and sends the application's mails
type Mailer struct {
	sender Sender
	logger *zap.Logger
}

// New creates a mailer on top of a sender
func New(sender Sender) *Mailer {
	return &Mailer{sender: sender, logger: util.GetLogger()}
}

// SendOTP mails a password reset code
func (m *Mailer) SendOTP(ctx context.Context, to, name, otp string, ttl time.Duration) error {
	if name == "" {
		name = "user"
	}
	body, err := render(otpTemplate, map[string]string{
		"Name":     name,
		"OTP":      otp,
		"Validity": formatValidity(ttl),
	})
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, Message{To: to, Subject: "SuperMarket Account OTP Verification", HTML: body}); err != nil {
		return err
	}
	m.logger.Info("OTP email sent", zap.String("to", to))
	return nil
}

// SendOrderDecision tells a shop its order was approved or rejected
func (m *Mailer) SendOrderDecision(ctx context.Context, to, name, billID string, approved bool, total decimal.Decimal) error {
	body, err := render(decisionTemplate, map[string]interface{}{
		"Name":     name,
		"BillID":   billID,
		"Approved": approved,
		"Total":    total.StringFixed(2),
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Order %s rejected", billID)
	if approved {
		subject = fmt.Sprintf("Order %s approved", billID)
	}
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: body})
}

// SendOrderReceived confirms a freshly placed order to its shop
func (m *Mailer) SendOrderReceived(ctx context.Context, to, name, billID string, lines int, total decimal.Decimal) error {
	body, err := render(receivedTemplate, map[string]interface{}{
		"Name":   name,
		"BillID": billID,
		"Lines":  lines,
		"Total":  total.StringFixed(2),
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, Message{To: to, Subject: fmt.Sprintf("Order %s received", billID), HTML: body})
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func formatValidity(ttl time.Duration) string {
	if ttl >= time.Minute && ttl%time.Minute == 0 {
		minutes := int(ttl / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return fmt.Sprintf("%d seconds", int(ttl/time.Second))
}
