package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPMailerService implements the Mailer interface using net/smtp.
type SMTPMailerService struct {
	host       string
	port       int
	username   string
	password   string
	from       string // The "From" address for the email header
	senderName string // The display name for the sender
	logger     *zap.Logger
}

// NewSMTPMailerService creates a new SMTPMailerService.
func NewSMTPMailerService(host string, port int, username, password, fromEmail, senderName string, logger *zap.Logger) *SMTPMailerService {
	return &SMTPMailerService{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       fromEmail,
		senderName: senderName,
		logger:     logger.Named("SMTPMailerService"),
	}
}

// SendWelcome sends a welcome email to a freshly registered user.
func (s *SMTPMailerService) SendWelcome(toEmailAddr, toName string) error {
	s.logger.Info("Attempting to send welcome email via SMTP",
		zap.String("toEmail", toEmailAddr),
		zap.String("smtpHost", s.host),
		zap.Int("smtpPort", s.port))

	subject := "Welcome!"

	htmlBodyContent := fmt.Sprintf(`<p>Hello %s,</p>
                             <p>Your account has been created successfully.</p>
                             <p>If you did not register, please contact support.</p>`, toName)

	plainTextBodyContent := fmt.Sprintf(`Hello %s,
                           Your account has been created successfully.
                           If you did not register, please contact support.`, toName)

	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	headers := make(map[string]string)
	if s.senderName != "" {
		headers["From"] = fmt.Sprintf("%s <%s>", s.senderName, s.from)
	} else {
		headers["From"] = s.from
	}
	headers["To"] = toEmailAddr
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"

	// Constructing a multipart message
	boundary := "account-mail-boundary"
	headers["Content-Type"] = fmt.Sprintf("multipart/alternative; boundary=%s", boundary)

	var msgBuilder strings.Builder

	for k, v := range headers {
		msgBuilder.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msgBuilder.WriteString("\r\n")

	// Plain text part
	msgBuilder.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msgBuilder.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msgBuilder.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	msgBuilder.WriteString(plainTextBodyContent)
	msgBuilder.WriteString("\r\n\r\n")

	// HTML part
	msgBuilder.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msgBuilder.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msgBuilder.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	msgBuilder.WriteString(htmlBodyContent)
	msgBuilder.WriteString("\r\n\r\n")

	msgBuilder.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	msg := msgBuilder.String()

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, []string{toEmailAddr}, []byte(msg))
	if err != nil {
		s.logger.Error("Failed to send email via SMTP",
			zap.Error(err),
			zap.String("toEmail", toEmailAddr),
			zap.String("smtpHost", s.host))
		return fmt.Errorf("smtp.SendMail failed: %w", err)
	}

	s.logger.Info("Welcome email sent successfully via SMTP", zap.String("toEmail", toEmailAddr))
	return nil
}
