package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"questboard/pkg/logger"

	"go.uber.org/zap"
)

type Config struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Mailer sends plain-text notification emails over SMTP. All sends are
// fire-and-forget: delivery failures are logged and never surfaced to the
// triggering request.
type Mailer struct {
	cfg Config
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) configured() bool {
	return m.cfg.Host != "" && m.cfg.User != "" && m.cfg.Password != "" && m.cfg.From != ""
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.configured() {
		return fmt.Errorf("mailer not configured")
	}

	port := m.cfg.Port
	if port == "" {
		port = "587"
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, port)
	a := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	return smtp.SendMail(addr, a, m.cfg.From, []string{to}, []byte(msg))
}

// SendAsync delivers in the background. The caller's request never waits on
// or fails because of email.
func (m *Mailer) SendAsync(to, subject, body string) {
	go func() {
		if err := m.send(to, subject, body); err != nil {
			logger.Logger().Warn("failed to send email",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err))
		}
	}()
}

func (m *Mailer) SendWelcome(to, username string) {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour account is verified and ready. Start your first quest to earn XP and USDC.\n",
		username)
	m.SendAsync(to, "Welcome to Questboard", body)
}

func (m *Mailer) SendWithdrawalApproved(to, amount, txHash string) {
	body := fmt.Sprintf(
		"Your withdrawal of $%s USDC has been approved and sent.\n\nTransaction hash: %s\n",
		amount, txHash)
	m.SendAsync(to, "Withdrawal approved", body)
}

func (m *Mailer) SendWithdrawalRejected(to, amount, reason string) {
	body := fmt.Sprintf(
		"Your withdrawal of $%s USDC was rejected and the amount was returned to your balance.\n\nReason: %s\n",
		amount, reason)
	m.SendAsync(to, "Withdrawal rejected", body)
}
