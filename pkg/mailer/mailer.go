package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/cdm-registrar/registrar-api/pkg/config"
)

// Mailer sends registrar notification emails over SMTP.
type Mailer struct {
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
}

// New builds a mailer from SMTP and notification settings.
func New(smtp config.SMTPConfig, notif config.NotificationsConfig) *Mailer {
	return &Mailer{
		dialer:    gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password),
		fromName:  notif.FromName,
		fromEmail: notif.FromEmail,
	}
}

// SendDocumentReady notifies a student that a document can be picked up.
func (m *Mailer) SendDocumentReady(toEmail, studentName, documentType, queueNumber string) error {
	subject := fmt.Sprintf("Your %s is ready for pickup", documentType)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nYour requested document (%s) is now ready for pickup at the Registrar's Office.\r\n\r\nQueue Number: %s\r\n\r\nPlease bring a valid school ID and your claim stub.\r\n\r\nThank you,\r\n%s",
		studentName, documentType, queueNumber, m.fromName,
	)
	return m.send(toEmail, subject, body)
}

// SendPaymentOutcome notifies a student that a payment was verified or
// rejected; reason is included only on rejection.
func (m *Mailer) SendPaymentOutcome(toEmail, studentName, queueNumber string, approved bool, reason string) error {
	var subject, body string
	if approved {
		subject = "Payment verified"
		body = fmt.Sprintf(
			"Hi %s,\r\n\r\nYour payment for request %s has been verified. Your request is now queued for review.\r\n\r\nThank you,\r\n%s",
			studentName, queueNumber, m.fromName,
		)
	} else {
		subject = "Payment rejected"
		body = fmt.Sprintf(
			"Hi %s,\r\n\r\nYour payment for request %s was rejected.\r\n\r\nReason: %s\r\n\r\nPlease upload a new proof of payment from your dashboard.\r\n\r\nThank you,\r\n%s",
			studentName, queueNumber, reason, m.fromName,
		)
	}
	return m.send(toEmail, subject, body)
}

func (m *Mailer) send(toEmail, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, m.fromName)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", toEmail, err)
	}
	return nil
}
