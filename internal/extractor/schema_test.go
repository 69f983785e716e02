package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bbarnes4318/hoppy/internal/types"
)

func TestParseMissingBillableIsFalse(t *testing.T) {
	rec := Parse("- Agent Name: Sam\n")
	assert.False(t, rec.Billable)
	assert.Equal(t, types.NotProvided, rec.BillableReason)
	assert.Equal(t, "Sam", rec.Supporting["Agent Name"])
	assert.Equal(t, types.NotProvided, rec.Supporting["Carrier"])
	assert.Empty(t, rec.Detail)
}

func TestParseFullReply(t *testing.T) {
	reply := strings.Join([]string{
		"- Billable: Yes",
		"- Billable Reason: Not Provided",
		"- Application Submitted: No",
		"- Application Reason: No payment info collected",
		"- Monthly Premium: $42.50",
		"- Carrier: Mutual of Omaha",
		"- Customer Name: Jane Doe",
		"- Phone Number: 555-0100",
		"- Agent Name: Sam",
		"- Abrupt Ending: Yes",
		"- Abrupt Ending Reason: Customer hung up",
		`- Last Thing Said: "I have to go."`,
	}, "\n")

	rec := Parse(reply)
	assert.True(t, rec.Billable)
	assert.False(t, rec.SaleOrApplication)
	assert.Equal(t, "No payment info collected", rec.SaleReason)
	assert.Equal(t, "$42.50", rec.Supporting["Monthly Premium"])
	assert.Equal(t, "Mutual of Omaha", rec.Supporting["Carrier"])
	assert.True(t, rec.AbruptEnding)
	assert.Equal(t, "Customer hung up", rec.AbruptReason)
	assert.Equal(t, "I have to go.", rec.LastUtterance)
	assert.Equal(t, RubricVersion, rec.RubricVersion)
}

func TestParseTolerantFormatting(t *testing.T) {
	reply := strings.Join([]string{
		"Here is the analysis:",
		"1. **Billable**: [No]",
		"- Reason (if Not Billable): Unqualified Customer: Age 81+",
		"* application submitted: YES, bank details collected",
		"- Reason (if No): ",
		"• Did the call end abruptly? No",
		"- Reason (if Yes): n/a",
	}, "\n")

	rec := Parse(reply)
	assert.False(t, rec.Billable)
	assert.Equal(t, "Unqualified Customer: Age 81+", rec.BillableReason)
	assert.True(t, rec.SaleOrApplication)
	assert.Equal(t, types.NotProvided, rec.SaleReason)
	assert.False(t, rec.AbruptEnding)
	assert.Equal(t, "n/a", rec.AbruptReason)
}

func TestParseFirstOccurrenceWins(t *testing.T) {
	rec := Parse("Billable: No\nBillable: Yes\nAgent Name: Sam\nAgent Name: Bob")
	assert.False(t, rec.Billable)
	assert.Equal(t, "Sam", rec.Supporting["Agent Name"])
}

func TestParseYesNoTokens(t *testing.T) {
	cases := map[string]bool{
		"Yes":                 true,
		"yes.":                true,
		"- Yes, qualified":    true,
		"Definitely yes":      false,
		"No":                  false,
		"No, yes later":       false,
		"Unclear":             false,
		"Unclear - yes or no": false,
		"":                    false,
		"Yesterday they said": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Parse("Billable: "+in).Billable, in)
	}
}

func TestParseYesLaterInValue(t *testing.T) {
	rec := Parse("Billable: Not billable, yes the caller is 85\nAgent Name: Sam")
	assert.False(t, rec.Billable)
	assert.Equal(t, "Sam", rec.Supporting["Agent Name"])
}

func TestParseLeadingBareReasonDropped(t *testing.T) {
	rec := Parse("Reason: caller hung up\nApplication Submitted: Yes")
	assert.True(t, rec.SaleOrApplication)
	assert.Equal(t, types.NotProvided, rec.BillableReason)
	assert.Equal(t, types.NotProvided, rec.SaleReason)
	assert.Equal(t, types.NotProvided, rec.AbruptReason)

	only := Parse("Reason: caller hung up")
	assert.Equal(t, Sentinel().Supporting, only.Supporting)
	assert.Equal(t, types.NotProvided, only.BillableReason)
	assert.Equal(t, "reply contained no rubric fields", only.Detail)
}

func TestParseGarbage(t *testing.T) {
	rec := Parse("I'm sorry, I can't help with that.")
	assert.Equal(t, Sentinel().Supporting, rec.Supporting)
	assert.False(t, rec.Billable)
	assert.NotEmpty(t, rec.Detail)
}

func TestRenderRoundTrip(t *testing.T) {
	rec := Parse("Billable: Yes\nApplication Submitted: Yes\nAgent Name: Sam\nMonthly Premium: $30")
	out := Render(rec)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(Schema))
	assert.Equal(t, "Billable: Yes", lines[0])
	assert.Contains(t, out, "Agent Name: Sam\n")
	assert.Contains(t, out, "Carrier: Not Provided\n")

	again := Parse(out)
	again.Raw, rec.Raw = "", ""
	assert.Equal(t, rec, again)
}
