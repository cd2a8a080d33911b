// Package email wraps the transactional email providers. Brevo is the
// primary; Resend is the fallback when Brevo fails or has no key
// configured. Callers above the task layer treat sends as best effort.
package email
