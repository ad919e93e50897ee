package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
)

// Mailer is the notification collaborator boundary. Implementations
// receive already-composited assets; nothing here renders anything.
type Mailer interface {
	SendAccessCode(ctx context.Context, to, code string) error
	SendPhoto(ctx context.Context, to string, imageData []byte) error
}

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	user     string
	pass     string
	from     string
	fromName string
}

func NewSMTPMailer(host, port, user, pass, from, fromName string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		user:     user,
		pass:     pass,
		from:     from,
		fromName: fromName,
	}
}

func (m *SMTPMailer) configured() error {
	if m.host == "" || m.port == "" || m.user == "" || m.pass == "" || m.from == "" {
		return fmt.Errorf("SMTP configuration missing")
	}
	return nil
}

func (m *SMTPMailer) send(to string, msg []byte) error {
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	return smtp.SendMail(addr, auth, m.from, []string{to}, msg)
}

func (m *SMTPMailer) SendAccessCode(ctx context.Context, to, code string) error {
	if err := m.configured(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Your InstaPhotoBooth Access Code: %s", code)
	body := fmt.Sprintf(`<div style="font-family: sans-serif; text-align: center; padding: 20px; border: 1px solid #ddd; border-radius: 8px; max-width: 500px; margin: auto;">
  <h2>Your Access Code is Ready!</h2>
  <p>Thank you for your purchase. Your photo booth session can be started immediately by returning to the page where you paid.</p>
  <p>If you closed the window, use the code below to start your session.</p>
  <div style="background-color: #f4f4f4; border-radius: 8px; padding: 20px; margin: 20px 0;">
    <p style="font-size: 36px; font-weight: bold; letter-spacing: 8px; margin: 0; color: #333;">%s</p>
  </div>
  <p>Enjoy the fun!</p>
</div>`, code)

	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"\r\n"+
		"%s\r\n", m.fromName, m.from, to, subject, body))

	return m.send(to, msg)
}

func (m *SMTPMailer) SendPhoto(ctx context.Context, to string, imageData []byte) error {
	if err := m.configured(); err != nil {
		return err
	}

	msg, err := m.buildPhotoMessage(to, imageData)
	if err != nil {
		return fmt.Errorf("build photo message: %w", err)
	}
	return m.send(to, msg)
}

// buildPhotoMessage assembles a multipart message with a short HTML body
// and the composited photo as a JPEG attachment.
func (m *SMTPMailer) buildPhotoMessage(to string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", m.fromName, m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: Your Photo from InstaPhotoBooth!\r\n")
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", "text/html; charset=utf-8")
	bodyPart, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(bodyPart, `<div style="font-family: sans-serif; text-align: center;">
  <h2>Here's your photo!</h2>
  <p>Thanks for using the photo booth. We hope you had a blast!</p>
</div>`)

	attachmentHeader := textproto.MIMEHeader{}
	attachmentHeader.Set("Content-Type", "image/jpeg")
	attachmentHeader.Set("Content-Transfer-Encoding", "base64")
	attachmentHeader.Set("Content-Disposition", `attachment; filename="instaphotobooth.jpg"`)
	attachmentPart, err := writer.CreatePart(attachmentHeader)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(imageData)
	// RFC 2045 line length limit for base64 bodies.
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := fmt.Fprintf(attachmentPart, "%s\r\n", encoded[:n]); err != nil {
			return nil, err
		}
		encoded = encoded[n:]
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ Mailer = (*SMTPMailer)(nil)
