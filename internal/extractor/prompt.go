package extractor

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const SystemPrompt = "You are an AI assistant analyzing call transcripts. Provide ONLY the requested structured data."

const truncationNote = "\n... (TRUNCATED)"

// Truncate cuts text to at most max runes and appends a note when it did.
func Truncate(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	r := []rune(text)
	return string(r[:max]) + truncationNote, true
}

// BuildPrompt renders the rubric around the transcript. The age cutoff is
// derived from now.
func BuildPrompt(transcript string, maxChars int, now time.Time) (string, bool) {
	body, truncated := Truncate(transcript, maxChars)
	cutoff := now.AddDate(-81, 0, 0).Format("January 02, 2006")

	var out strings.Builder
	for _, f := range Schema {
		fmt.Fprintf(&out, "- %s: %s\n", f.Label, f.Hint)
	}

	return fmt.Sprintf(`Analyze the following call transcript:
--- TRANSCRIPT START ---
%s
--- TRANSCRIPT END ---

Your objectives:

1. Billable call determination. Judge billability ONLY on these criteria and ignore the sales outcome.
A call is NOT billable when one or more apply:
  a. Unqualified customer: age 81+ (born on or before %s), lives in a nursing home or assisted living, has no active bank account or credit card, or needs power of attorney for financial decisions.
  b. Vulgar or prank call: clearly wasting the agent's time or using vulgar language.
  c. Do Not Call request: asks to be placed on the DNC list or calls only to complain about receiving calls.

2. Application submitted determination, separate from billability. An application counts as submitted only when the agent collected a portion of the SSN (last 4, first 5 or all 9) AND checking/savings routing and account numbers or a credit card number.

3. Supporting information. Extract when available, otherwise write "Not Provided".

4. Abrupt ending analysis. Decide whether the call ended abruptly and quote the last audible statement.

Output format, one field per line, every field present:
%s
Reply with ONLY these lines, starting directly with "- Billable:". No introductions, summaries or markdown.
`, body, cutoff, out.String()), truncated
}
