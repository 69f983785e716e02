package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bbarnes4318/hoppy/internal/types"
)

// RubricVersion identifies the field set and prompt wording.
const RubricVersion = "final-expense-2"

type Kind int

const (
	KindText Kind = iota
	KindYesNo
)

// Role says where a parsed value lands in the AnalysisRecord.
type Role int

const (
	RoleSupporting Role = iota
	RoleBillable
	RoleBillableReason
	RoleSale
	RoleSaleReason
	RoleAbrupt
	RoleAbruptReason
	RoleLastUtterance
)

// Field is one labeled line of the structured reply.
type Field struct {
	Label   string
	Kind    Kind
	Role    Role
	Hint    string
	Aliases []string
	// Reason names the field a bare "Reason:" line fills when it directly
	// follows this one.
	Reason string
}

// Schema is the rubric field set in output order. Adding a supporting field
// only needs a new entry here.
var Schema = []Field{
	{Label: "Billable", Kind: KindYesNo, Role: RoleBillable, Hint: "[Yes/No]", Reason: "Billable Reason"},
	{Label: "Billable Reason", Role: RoleBillableReason, Hint: `[if not billable, the criterion met, e.g. "Unqualified Customer: Age 81+"]`, Aliases: []string{"Reason Not Billable"}},
	{Label: "Application Submitted", Kind: KindYesNo, Role: RoleSale, Hint: "[Yes/No]", Reason: "Application Reason", Aliases: []string{"Sale Made"}},
	{Label: "Application Reason", Role: RoleSaleReason, Hint: `[if no, why, e.g. "No payment info collected"]`},
	{Label: "Monthly Premium", Hint: `[amount or "Not Provided"]`},
	{Label: "Carrier", Hint: `[name or "Not Provided"]`},
	{Label: "Customer Name", Hint: `[full name or "Not Provided"]`},
	{Label: "Phone Number", Hint: `[number or "Not Provided"]`},
	{Label: "Agent Name", Hint: `[first name or "Not Provided"]`},
	{Label: "Abrupt Ending", Kind: KindYesNo, Role: RoleAbrupt, Hint: "[Yes/No]", Reason: "Abrupt Ending Reason", Aliases: []string{"Did the call end abruptly?"}},
	{Label: "Abrupt Ending Reason", Role: RoleAbruptReason, Hint: `[if yes, e.g. "Customer hung up", "Call dropped"]`},
	{Label: "Last Thing Said", Role: RoleLastUtterance, Hint: "[quote the last audible statement]"},
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	listMarker    = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)
	spaces        = regexp.MustCompile(`\s+`)
)

func normalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = parenthetical.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), "?:.")
	return strings.ToLower(spaces.ReplaceAllString(strings.TrimSpace(s), " "))
}

var byLabel = func() map[string]int {
	m := make(map[string]int, len(Schema))
	for i, f := range Schema {
		m[normalizeLabel(f.Label)] = i
		for _, a := range f.Aliases {
			m[normalizeLabel(a)] = i
		}
	}
	return m
}()

func fieldIndex(label string) (int, bool) {
	i, ok := byLabel[normalizeLabel(label)]
	return i, ok
}

func cleanValue(v string) string {
	v = strings.TrimSpace(strings.ReplaceAll(v, "**", ""))
	if len(v) >= 2 && v[0] == '[' && v[len(v)-1] == ']' {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}

// parseYesNo reads the leading word of v. Only "yes" is true.
func parseYesNo(v string) bool {
	words := strings.FieldsFunc(strings.ToLower(v), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	return len(words) > 0 && words[0] == "yes"
}

// Parse maps a free-form reply onto the schema. It never fails: missing
// fields take sentinel values.
func Parse(reply string) types.AnalysisRecord {
	values := make(map[int]string, len(Schema))
	prev := -1
	for _, line := range strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n") {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			// "Did the call end abruptly? Yes"
			label, value, ok = strings.Cut(line, "?")
		}
		if !ok {
			continue
		}
		idx, found := fieldIndex(label)
		if !found && normalizeLabel(label) == "reason" && prev >= 0 && Schema[prev].Reason != "" {
			idx, found = fieldIndex(Schema[prev].Reason)
		}
		if !found {
			continue
		}
		prev = idx
		if _, seen := values[idx]; !seen {
			values[idx] = cleanValue(value)
		}
	}

	rec := Sentinel()
	for i, f := range Schema {
		v, ok := values[i]
		if f.Kind == KindYesNo {
			setBool(&rec, f.Role, ok && parseYesNo(v))
			continue
		}
		if !ok || v == "" {
			v = types.NotProvided
		}
		setText(&rec, f, v)
	}
	if len(values) == 0 {
		rec.Detail = "reply contained no rubric fields"
	}
	return rec
}

// Sentinel is the record used when no usable reply exists.
func Sentinel() types.AnalysisRecord {
	rec := types.AnalysisRecord{
		BillableReason: types.NotProvided,
		SaleReason:     types.NotProvided,
		AbruptReason:   types.NotProvided,
		LastUtterance:  types.NotProvided,
		Supporting:     map[string]string{},
		RubricVersion:  RubricVersion,
	}
	for _, f := range Schema {
		if f.Role == RoleSupporting {
			rec.Supporting[f.Label] = types.NotProvided
		}
	}
	return rec
}

func setBool(rec *types.AnalysisRecord, role Role, v bool) {
	switch role {
	case RoleBillable:
		rec.Billable = v
	case RoleSale:
		rec.SaleOrApplication = v
	case RoleAbrupt:
		rec.AbruptEnding = v
	}
}

func setText(rec *types.AnalysisRecord, f Field, v string) {
	switch f.Role {
	case RoleBillableReason:
		rec.BillableReason = v
	case RoleSaleReason:
		rec.SaleReason = v
	case RoleAbruptReason:
		rec.AbruptReason = v
	case RoleLastUtterance:
		rec.LastUtterance = v
	default:
		rec.Supporting[f.Label] = v
	}
}

// Value returns the rendered value of f in rec.
func Value(rec types.AnalysisRecord, f Field) string {
	yn := func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	}
	switch f.Role {
	case RoleBillable:
		return yn(rec.Billable)
	case RoleSale:
		return yn(rec.SaleOrApplication)
	case RoleAbrupt:
		return yn(rec.AbruptEnding)
	case RoleBillableReason:
		return rec.BillableReason
	case RoleSaleReason:
		return rec.SaleReason
	case RoleAbruptReason:
		return rec.AbruptReason
	case RoleLastUtterance:
		return rec.LastUtterance
	}
	if v, ok := rec.Supporting[f.Label]; ok && v != "" {
		return v
	}
	return types.NotProvided
}

// Render writes rec as one "Label: value" line per schema field.
func Render(rec types.AnalysisRecord) string {
	var b strings.Builder
	for _, f := range Schema {
		fmt.Fprintf(&b, "%s: %s\n", f.Label, Value(rec, f))
	}
	return b.String()
}
