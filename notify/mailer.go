package notify

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"helpdesk/models"
	"helpdesk/realtime"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer emails ticket updates to customers without a live stream.
type SendGridMailer struct {
	client   sendClient
	from     *mail.Email
	siteName string
}

func NewSendGridMailer(apiKey, sender, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		from:     mail.NewEmail(fromName, sender),
		siteName: fromName,
	}
}

func (m *SendGridMailer) TicketUpdate(ctx context.Context, ticket models.SupportTicket, eventType, text string) error {
	title, intro := describeTicketEvent(eventType, ticket)
	if title == "" {
		return nil
	}

	subject := fmt.Sprintf("[Ticket #%d] %s", ticket.ID, ticket.Subject)
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>%s</p>`, html.EscapeString(ticket.CustomerName), intro)
	if text != "" {
		body += fmt.Sprintf(`
		<div class="info-box"><em>%s</em></div>`, html.EscapeString(text))
	}
	body += `
		<p>You can reply to this ticket from the support page.</p>`

	to := mail.NewEmail(ticket.CustomerName, ticket.CustomerEmail)
	message := mail.NewSingleEmail(m.from, subject, to, intro+"\n\n"+text, m.template(title, body))

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	log.Printf("[MAIL] %s sent for ticket %d", eventType, ticket.ID)
	return nil
}

func describeTicketEvent(eventType string, ticket models.SupportTicket) (string, string) {
	switch eventType {
	case realtime.EventSupportTicketMessage:
		return "New reply on your ticket", "Our support team has replied to your ticket."
	case realtime.EventTicketAgentAssigned:
		return "An agent is on it", "A support agent has been assigned to your ticket."
	case realtime.EventTicketStatusUpdated:
		return "Ticket status updated", fmt.Sprintf("Your ticket is now <strong>%s</strong>.", html.EscapeString(ticket.Status))
	}
	return "", ""
}

func (m *SendGridMailer) template(title, content string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #1F2A44; padding: 24px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 22px; }
			.content { padding: 32px 28px; color: #1F2A44; line-height: 1.6; }
			.info-box { background: #EEF2F8; padding: 15px; border-radius: 4px; border-left: 4px solid #4A6FA5; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>%s</h1></div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
		</div>
	</body>
	</html>
	`, html.EscapeString(m.siteName), title, content)
}
