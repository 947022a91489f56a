package services

import (
	"fmt"
	"log"
	"net/smtp"
	"os"

	"civicfix-be/models"
)

// Notifier delivers templated emails. The lifecycle workflow treats sends
// as fire-and-forget: a failure is logged and surfaced as a warning, never
// rolled into the status transition.
type Notifier interface {
	Send(to, subject, htmlBody string) error
}

// SMTPNotifier sends emails via plain SMTP, configured from the
// environment (SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD,
// SMTP_SENDER).
type SMTPNotifier struct{}

func (SMTPNotifier) Send(to, subject, htmlBody string) error {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	username := os.Getenv("SMTP_USERNAME")
	password := os.Getenv("SMTP_PASSWORD")
	sender := os.Getenv("SMTP_SENDER")

	if sender == "" {
		sender = "no-reply@localhost"
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: Civic Portal <%s>\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	}
	return err
}

func otpMessage(code string) (string, string) {
	subject := "Your CivicFix verification code"
	body := fmt.Sprintf(
		"<p>Your one-time verification code is:</p><h2>%s</h2>"+
			"<p>The code expires in 5 minutes.</p>", code)
	return subject, body
}

func statusMessage(issue *models.Issue) (string, string) {
	var verb string
	switch issue.Status {
	case models.StatusApproved:
		verb = "approved"
	case models.StatusRejected:
		verb = "rejected"
	default:
		verb = "updated"
	}
	subject := fmt.Sprintf("Your issue %s has been %s", issue.PublicID, verb)
	body := fmt.Sprintf(
		"<p>Hello,</p><p>Your reported issue <b>%s</b> (%s) has been %s.</p>",
		issue.Title, issue.PublicID, verb)
	return subject, body
}

func resolutionMessage(issue *models.Issue, acceptURL, declineURL string) (string, string) {
	subject := fmt.Sprintf("Is your issue %s fixed?", issue.PublicID)
	body := fmt.Sprintf(
		"<p>Hello,</p>"+
			"<p>Our team marked your issue <b>%s</b> (%s) as resolved. "+
			"Please confirm whether the problem is actually fixed:</p>"+
			"<p><a href=\"%s\">Yes, it is fixed</a></p>"+
			"<p><a href=\"%s\">No, the problem remains</a></p>"+
			"<p>Each link works exactly once.</p>",
		issue.Title, issue.PublicID, acceptURL, declineURL)
	return subject, body
}

func declineNoticeMessage(issue *models.Issue) (string, string) {
	subject := fmt.Sprintf("Resolution declined for issue %s", issue.PublicID)
	body := fmt.Sprintf(
		"<p>The reporter of issue <b>%s</b> (%s) declined the resolution. "+
			"The issue is back in the pending queue.</p>",
		issue.Title, issue.PublicID)
	return subject, body
}
