package notify

import (
	"context"
	"fmt"
)

// Push is one device notification.
type Push struct {
	Token string
	Title string
	Data  map[string]string
}

// Mail is one outbound message. HTML selects a text/html body.
type Mail struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

type PushSender interface {
	SendPush(ctx context.Context, p Push) error
}

type MailSender interface {
	SendMail(ctx context.Context, m Mail) error
}

const (
	otpPushTitle        = "OTP Code"
	emailCodeSubject    = "Almagest email verification"
	newEmailCodeSubject = "Almagest email change verification"
	resetSubject        = "Password reset"
)

// OTPPush builds the data push carrying a login code.
func OTPPush(token, code string) Push {
	return Push{
		Token: token,
		Title: otpPushTitle,
		Data:  map[string]string{"type": "otp", "code": code},
	}
}

// EmailCodeMail builds the confirmation-code mail. changing selects the
// subject used when the code confirms a new address.
func EmailCodeMail(to, code string, changing bool) Mail {
	subject := emailCodeSubject
	if changing {
		subject = newEmailCodeSubject
	}
	return Mail{
		To:      to,
		Subject: subject,
		Body:    fmt.Sprintf("<p>Verification code : %s</p>", code),
		HTML:    true,
	}
}

// TemporaryPasswordMail builds the password-reset mail.
func TemporaryPasswordMail(to, password string) Mail {
	return Mail{
		To:      to,
		Subject: resetSubject,
		Body:    "Temporary password : " + password,
	}
}
