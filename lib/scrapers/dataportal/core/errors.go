package core

import "fmt"

// StatusError reports a non-2xx portal response.
type StatusError struct {
	Code    int
	Excerpt string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal returned status %d: %s", e.Code, e.Excerpt)
}

// AuthError reports missing credentials or a login attempt the portal
// rejected (the response rendered the login page again).
type AuthError struct {
	Reason  string
	Excerpt string
}

func (e *AuthError) Error() string {
	if e.Excerpt == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Excerpt)
}

// TokenMissingError reports a scraped token that could not be located
// in the returned HTML: a login form, a t_code handle, a temp upload
// filename.
type TokenMissingError struct {
	Token string
}

func (e *TokenMissingError) Error() string {
	return fmt.Sprintf("could not locate %s in portal response", e.Token)
}

// AmbiguousResponseError reports a response matching neither a known
// success phrase nor a known failure phrase. It is a first-class
// failure, never coerced to success.
type AmbiguousResponseError struct {
	Step    string
	Excerpt string
}

func (e *AmbiguousResponseError) Error() string {
	return fmt.Sprintf("ambiguous portal response at %s: %s", e.Step, e.Excerpt)
}

// ValidationError reports local input rejected before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
