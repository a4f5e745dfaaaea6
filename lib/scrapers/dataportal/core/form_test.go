package core

import (
	"testing"

	_ "embed"

	"github.com/stretchr/testify/require"
)

//go:embed fixtures/login_page.html
var loginPageFixture []byte

func TestParseLoginForm(t *testing.T) {
	form, err := ParseLoginForm(loginPageFixture)
	require.NoError(t, err)

	// the search form comes first in the document but carries no
	// credential fields, so the login form must win
	require.Equal(t, "index.php", form.Action)
	require.Equal(t, "1", form.Fields.Get("pass_check"))
	require.Equal(t, "8f3a1c", form.Fields.Get("csrf_seed"))
	require.True(t, form.Fields.Has("id"))
	require.True(t, form.Fields.Has("password"))
	require.Equal(t, "ログイン", form.Fields.Get("submit_login"))
	require.False(t, form.Fields.Has("q"))
}

func TestParseLoginFormFallsBackToFirstForm(t *testing.T) {
	html := []byte(`<html><body>
		<form action="a.php"><input name="alpha" value="1"></form>
		<form action="b.php"><input name="beta" value="2"></form>
	</body></html>`)

	form, err := ParseLoginForm(html)
	require.NoError(t, err)
	require.Equal(t, "a.php", form.Action)
	require.Equal(t, "1", form.Fields.Get("alpha"))
}

func TestParseLoginFormNoForms(t *testing.T) {
	_, err := ParseLoginForm([]byte(`<html><body><p>empty</p></body></html>`))
	var missing *TokenMissingError
	require.ErrorAs(t, err, &missing)
}

func TestFillOverwritesOnlyCredentialSlots(t *testing.T) {
	form, err := ParseLoginForm(loginPageFixture)
	require.NoError(t, err)
	form.Fill("someone", "hunter2")

	require.Equal(t, "someone", form.Fields.Get("id"))
	require.Equal(t, "hunter2", form.Fields.Get("password"))
	// every non-target field passes through unchanged
	require.Equal(t, "1", form.Fields.Get("pass_check"))
	require.Equal(t, "8f3a1c", form.Fields.Get("csrf_seed"))
	require.Equal(t, "ログイン", form.Fields.Get("submit_login"))
}

func TestFillPrefersFirstCandidate(t *testing.T) {
	html := []byte(`<html><body><form action="index.php">
		<input name="user_id" value="">
		<input name="login_id" value="">
		<input name="pwd" value="">
	</form></body></html>`)

	form, err := ParseLoginForm(html)
	require.NoError(t, err)
	form.Fill("someone", "hunter2")

	require.Equal(t, "someone", form.Fields.Get("user_id"))
	require.Equal(t, "", form.Fields.Get("login_id"))
	require.Equal(t, "hunter2", form.Fields.Get("pwd"))
}

func TestFillInsertsDefaultsWhenNoCandidateExists(t *testing.T) {
	html := []byte(`<html><body><form action="index.php">
		<input type="hidden" name="token" value="abc">
	</form></body></html>`)

	form, err := ParseLoginForm(html)
	require.NoError(t, err)
	form.Fill("someone", "hunter2")

	require.Equal(t, "someone", form.Fields.Get("id"))
	require.Equal(t, "hunter2", form.Fields.Get("password"))
	require.Equal(t, "abc", form.Fields.Get("token"))
}
