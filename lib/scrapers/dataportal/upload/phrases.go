package upload

import "strings"

// The portal answers every workflow step with rendered HTML; these
// literal phrases are the de facto protocol for reading success and
// failure out of it. They are kept in one place so upstream string
// drift is a one-file change.
//
// PhraseTableVersion names the portal string set the tables below were
// written against.
const PhraseTableVersion = "2026-08"

type Outcome int

const (
	// OutcomeUnrecognized means no phrase rule matched. It is
	// distinct from both success and failure and never defaults to
	// either.
	OutcomeUnrecognized Outcome = iota
	OutcomeConfirmed
	OutcomeCommitted
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeCommitted:
		return "committed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unrecognized"
	}
}

type MatchMode int

const (
	// MatchSubstring matches a phrase anywhere in the body.
	MatchSubstring MatchMode = iota
	// MatchExact requires the phrase to be a whole line of the body.
	MatchExact
)

// StepResult is the classified outcome of one workflow step.
type StepResult struct {
	Outcome Outcome
	Reason  string
	Excerpt string
}

// rule maps a phrase set onto an outcome. Every phrase must be present
// for the rule to fire; rules are evaluated in order.
type rule struct {
	phrases []string
	outcome Outcome
	reason  string
}

// Metadata JSON confirm step. The no-file phrase outranks the generic
// error phrase, which outranks the confirm-screen detection.
var jsonConfirmRules = []rule{
	{[]string{"ファイルが選択されていません"}, OutcomeRejected, "portal reports no file was selected"},
	{[]string{"エラー"}, OutcomeRejected, "portal rendered an error page"},
	{[]string{"アップロード", "確認"}, OutcomeConfirmed, "confirm screen reached"},
}

// Metadata JSON commit step. Registration phrases first, then the
// failure phrases.
var jsonCommitRules = []rule{
	{[]string{"登録しました"}, OutcomeCommitted, "portal confirmed registration"},
	{[]string{"登録完了"}, OutcomeCommitted, "portal confirmed registration"},
	{[]string{"エラー"}, OutcomeRejected, "portal rendered an error page"},
	{[]string{"失敗"}, OutcomeRejected, "portal reports a failure"},
}

// Content archive final step.
var contentsRules = []rule{
	{[]string{"ファイルが選択されていません"}, OutcomeRejected, "portal reports no file was selected"},
	{[]string{"登録しました"}, OutcomeCommitted, "portal confirmed registration"},
	{[]string{"登録完了"}, OutcomeCommitted, "portal confirmed registration"},
	{[]string{"アップロードしました"}, OutcomeCommitted, "portal confirmed the upload"},
	{[]string{"エラー"}, OutcomeRejected, "portal rendered an error page"},
	{[]string{"失敗"}, OutcomeRejected, "portal reports a failure"},
}

func matchesPhrase(body, phrase string, mode MatchMode) bool {
	if mode == MatchSubstring {
		return strings.Contains(body, phrase)
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == phrase {
			return true
		}
	}
	return false
}

func classify(body string, rules []rule, mode MatchMode, excerpt func(string) string) StepResult {
	for _, r := range rules {
		matched := true
		for _, phrase := range r.phrases {
			if !matchesPhrase(body, phrase, mode) {
				matched = false
				break
			}
		}
		if matched {
			return StepResult{
				Outcome: r.outcome,
				Reason:  r.reason,
				Excerpt: excerpt(body),
			}
		}
	}
	return StepResult{
		Outcome: OutcomeUnrecognized,
		Reason:  "no known phrase matched",
		Excerpt: excerpt(body),
	}
}
