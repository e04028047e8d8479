// Package notify delivers OTP codes and account mail outside the request path.
//
// # Components
//
//   - [Dispatcher]: delayed fire-and-forget queue with a paced worker pool.
//   - [FCMSender]: push delivery over the FCM HTTP endpoint.
//   - [SMTPMailer]: HTML/plain mail over SMTP.
//
// A task submitted to the dispatcher runs no earlier than the configured
// delay after submission, so the HTTP response that scheduled it is flushed
// first. Failures are logged and counted, never retried and never reported
// back to the submitter.
//
// # What this package must NOT do
//
//   - Decide whether a code should be sent.
//   - Import almagestAuth.
package notify
