package core

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"rdcatalog/lib/htmlutil"
)

// Candidate names for the two fields the client must control. Every
// other field discovered in the form passes through untouched, which
// is what lets the client survive unannounced renames of hidden or
// anti-automation fields.
var usernameCandidates = []string{"id", "user_id", "username", "login_id"}
var passwordCandidates = []string{"password", "pass", "pwd", "login_password"}

// LoginForm is the discovered state of the portal's login form: the
// submit target and every input's current name→value.
type LoginForm struct {
	Action string
	Fields url.Values
}

// ParseLoginForm locates the most likely login form in a page.
// It prefers the first form whose input names intersect both the
// username and the password candidate lists, falling back to the
// first form on the page.
func ParseLoginForm(html []byte) (LoginForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return LoginForm{}, err
	}

	forms := doc.Find("form")
	if forms.Length() == 0 {
		return LoginForm{}, &TokenMissingError{Token: "login form"}
	}

	chosen := forms.First()
	forms.EachWithBreak(func(_ int, form *goquery.Selection) bool {
		names := map[string]bool{}
		form.Find("input").Each(func(_ int, input *goquery.Selection) {
			names[input.AttrOr("name", "")] = true
		})
		if containsAny(names, usernameCandidates) && containsAny(names, passwordCandidates) {
			chosen = form
			return false
		}
		return true
	})

	fields := url.Values{}
	chosen.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields.Set(name, input.AttrOr("value", ""))
	})
	chosen.Find("button[type=submit]").Each(func(_ int, button *goquery.Selection) {
		name := button.AttrOr("name", "")
		if name == "" {
			return
		}
		value := button.AttrOr("value", "")
		if value == "" {
			value = htmlutil.NormalizeText(button.Text())
		}
		fields.Set(name, value)
	})

	return LoginForm{
		Action: chosen.AttrOr("action", ""),
		Fields: fields,
	}, nil
}

func containsAny(names map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if names[c] {
			return true
		}
	}
	return false
}

// Fill overwrites exactly one username-like and one password-like
// field with the supplied credentials, picking the first candidate
// present in the form. When no candidate exists the portal's default
// field names are inserted.
func (f LoginForm) Fill(username, password string) {
	setFirst(f.Fields, usernameCandidates, "id", username)
	setFirst(f.Fields, passwordCandidates, "password", password)
}

func setFirst(fields url.Values, candidates []string, fallback, value string) {
	for _, c := range candidates {
		if fields.Has(c) {
			fields.Set(c, value)
			return
		}
	}
	fields.Set(fallback, value)
}
