package services

import (
	"context"
	"crypto/subtle"
	"time"

	"civicfix-be/utils"
)

// KVStore is the expiring key-value store the registration gate runs on.
// Production wires the shared Redis client; tests use MemoryKV.
type KVStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether the key exists and has not expired.
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
}

const (
	otpKeyPrefix      = "otp:"
	verifiedKeyPrefix = "otp_verified:"

	defaultCodeTTL     = 5 * time.Minute
	defaultVerifiedTTL = 10 * time.Minute
)

// OTP is the email-verification gate in front of registration. A 6-digit
// code with a short expiry must be verified before an account can be
// created; the verified mark is itself single-use and short-lived.
type OTP struct {
	Store    KVStore
	Notifier Notifier

	CodeTTL     time.Duration
	VerifiedTTL time.Duration
}

func NewOTP(store KVStore, notifier Notifier) *OTP {
	return &OTP{
		Store:       store,
		Notifier:    notifier,
		CodeTTL:     defaultCodeTTL,
		VerifiedTTL: defaultVerifiedTTL,
	}
}

// Request generates and mails a fresh code for the email. A repeated
// request simply overwrites the previous code.
func (o *OTP) Request(ctx context.Context, email string) error {
	code, err := utils.NewOTPCode()
	if err != nil {
		return err
	}

	if err := o.Store.Set(ctx, otpKeyPrefix+email, code, o.CodeTTL); err != nil {
		return err
	}

	subject, body := otpMessage(code)
	if o.Notifier != nil {
		// The code only exists in this mail, so a failed send fails the request.
		if err := o.Notifier.Send(email, subject, body); err != nil {
			return ErrNotification
		}
	}
	return nil
}

// Verify checks the code and, on success, consumes it and marks the email
// verified for the registration window.
func (o *OTP) Verify(ctx context.Context, email, code string) error {
	stored, ok, err := o.Store.Get(ctx, otpKeyPrefix+email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrOTPInvalid
	}

	if err := o.Store.Del(ctx, otpKeyPrefix+email); err != nil {
		return err
	}
	return o.Store.Set(ctx, verifiedKeyPrefix+email, "1", o.VerifiedTTL)
}

// ConsumeVerified reports whether the email holds a live verified mark and
// deletes it, so one verification admits exactly one registration.
func (o *OTP) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	_, ok, err := o.Store.Get(ctx, verifiedKeyPrefix+email)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := o.Store.Del(ctx, verifiedKeyPrefix+email); err != nil {
		return false, err
	}
	return true, nil
}
