package smtp

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net/textproto"
	"text/template"
	"time"
)

type otpMail struct {
	AppName string
	Code    string
	Minutes int
}

var textBody = template.Must(template.New("text").Parse(`Hello,

Your verification code for {{.AppName}} registration is: {{.Code}}

This code will expire in {{.Minutes}} minutes.

If you didn't request this code, please ignore this email.

Best regards,
{{.AppName}} Team
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background-color: #f9f9f9; border-radius: 10px; padding: 30px; text-align: center;">
    <h1 style="color: #e74c3c;">{{.AppName}} Email Verification</h1>
    <p>Hello,</p>
    <p>Your verification code for {{.AppName}} registration is:</p>
    <div style="font-size: 36px; font-weight: bold; color: #e74c3c; letter-spacing: 8px; margin: 30px 0; padding: 20px; background-color: #fff; border: 2px dashed #e74c3c;">{{.Code}}</div>
    <p><strong>This code will expire in {{.Minutes}} minutes.</strong></p>
    <p>If you didn't request this code, please ignore this email.</p>
    <p style="margin-top: 30px; font-size: 12px; color: #666;">Best regards,<br>{{.AppName}} Team</p>
  </div>
</body>
</html>
`))

func subject(appName string) string {
	return fmt.Sprintf("Your %s Verification Code", appName)
}

// buildMessage renders a multipart/alternative message with text and HTML parts.
func buildMessage(from, to, appName, code string, validity time.Duration, now time.Time) ([]byte, error) {
	data := otpMail{AppName: appName, Code: code, Minutes: int(validity.Round(time.Minute) / time.Minute)}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	textPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	if err := textBody.Execute(textPart, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	if err := htmlBody.Execute(htmlPart, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject(appName))
	fmt.Fprintf(&msg, "Date: %s\r\n", now.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
