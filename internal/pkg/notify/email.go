package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"librarydesk/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
//
// SMTP 未配置时所有发送都会被静默跳过（只记录日志），
// 与未配置邮件的部署行为保持一致。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendCirculationNotice 发送借还通知邮件。
func (n *EmailNotifier) SendCirculationNotice(ctx context.Context, toEmail, username, bookTitle, action, dueDate string) error {
	if !n.configured() {
		n.logger.Warn("email config missing, skip circulation notice")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip circulation notice")
		return nil
	}

	subject := "[LibraryDesk] Book issued"
	headline := fmt.Sprintf("“%s” has been issued to you.", bookTitle)
	detail := fmt.Sprintf("Please return it by <strong>%s</strong>.", dueDate)
	if action == "return" {
		subject = "[LibraryDesk] Book returned"
		headline = fmt.Sprintf("Your return of “%s” has been recorded.", bookTitle)
		detail = "Thank you for returning it on time."
	}

	body := n.buildHTMLBody(username, headline, detail)
	if err := n.send(toEmail, subject, body); err != nil {
		return fmt.Errorf("send circulation notice: %w", err)
	}

	n.logger.Info("circulation notice sent",
		slog.String("to", toEmail), slog.String("action", action))
	return nil
}

// SendDueReminder 发送逾期催还邮件。
func (n *EmailNotifier) SendDueReminder(ctx context.Context, toEmail, username, bookTitle, dueDate string) error {
	if !n.configured() {
		n.logger.Warn("email config missing, skip due reminder")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip due reminder")
		return nil
	}

	headline := fmt.Sprintf("“%s” is overdue.", bookTitle)
	detail := fmt.Sprintf("It was due on <strong>%s</strong>. Please return it to the library desk as soon as possible.", dueDate)
	body := n.buildHTMLBody(username, headline, detail)

	if err := n.send(toEmail, "[LibraryDesk] Overdue book reminder", body); err != nil {
		return fmt.Errorf("send due reminder: %w", err)
	}

	n.logger.Info("due reminder sent", slog.String("to", toEmail), slog.String("book", bookTitle))
	return nil
}

func (n *EmailNotifier) configured() bool {
	return n.cfg.SMTPHost != "" && n.cfg.SMTPUser != "" && n.cfg.FromEmail != ""
}

func (n *EmailNotifier) send(toEmail, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	return d.DialAndSend(m)
}

func (n *EmailNotifier) buildHTMLBody(username, headline, detail string) string {
	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .headline { font-size: 18px; font-weight: bold; margin-bottom: 12px; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">LibraryDesk</div>
    <div class="content">
      <p>Dear %s,</p>
      <div class="headline">%s</div>
      <p>%s</p>
      <div class="footer">This is an automated message from your library.</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, username, headline, detail)
}
