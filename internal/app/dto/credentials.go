package dto

import "context"

type credentialKey struct{}

// WithCredential attaches the caller's bearer token to ctx. Remote adapters
// send it in place of their configured service token.
func WithCredential(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, token)
}

// CredentialFrom returns the bearer token attached by WithCredential.
func CredentialFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(credentialKey{}).(string)
	return token, ok && token != ""
}
