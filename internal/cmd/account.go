package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/nghyane/stitch-sdk/internal/service"
)

// DoRegister registers a new user/password identity.
func DoRegister(ctx context.Context, app *service.App, providerName, email, password string, out io.Writer) error {
	if email == "" || password == "" {
		return fmt.Errorf("register needs --username and --password")
	}
	if err := app.Auth().UserPasswordClient(providerName).RegisterWithEmail(ctx, email, password); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Registered %s; check the inbox for a confirmation email\n", email)
	return nil
}

// DoConfirm confirms a registration with the token pair from the email.
func DoConfirm(ctx context.Context, app *service.App, providerName, token, tokenID string, out io.Writer) error {
	if err := app.Auth().UserPasswordClient(providerName).ConfirmUser(ctx, token, tokenID); err != nil {
		return fmt.Errorf("confirm failed: %w", err)
	}
	_, _ = fmt.Fprintln(out, "User confirmed")
	return nil
}

// DoSendResetEmail starts a password reset.
func DoSendResetEmail(ctx context.Context, app *service.App, providerName, email string, out io.Writer) error {
	if email == "" {
		return fmt.Errorf("reset-password needs --username")
	}
	if err := app.Auth().UserPasswordClient(providerName).SendResetPasswordEmail(ctx, email); err != nil {
		return fmt.Errorf("reset-password failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Password reset email sent to %s\n", email)
	return nil
}
