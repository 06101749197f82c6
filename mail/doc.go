// Package mail implements sessionauth.Mailer.
//
// [ResendMailer] delivers through the Resend HTTP API. In sandbox mode every message is
// sent from and to Resend's test addresses so development never reaches real inboxes.
// [LogMailer] writes messages to a slog.Logger and keeps them for inspection; the
// development server and handler tests use it.
package mail
