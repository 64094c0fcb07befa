package statement

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fernbooks/bankrecon/internal/grid"
)

// Role is a semantic role a statement column can play.
type Role string

const (
	RoleDate            Role = "date"
	RoleAmount          Role = "amount"
	RoleDescription     Role = "description"
	RoleReference       Role = "reference"
	RoleTransactionType Role = "transaction_type"
	RoleBalance         Role = "balance"
	RoleWithdrawal      Role = "withdrawal"
	RoleDeposit         Role = "deposit"

	// RoleSkip marks a column matching no role. Recorded for display but
	// not imported.
	RoleSkip Role = "do_not_import"
)

// roleKeywords maps each role to its header name variants. The slice
// order is the assignment priority: a column matching keywords of several
// roles goes to the earliest role in this list and becomes unavailable to
// later ones.
var roleKeywords = []struct {
	role     Role
	keywords []string
}{
	{RoleDate, []string{"date", "transaction date"}},
	{RoleAmount, []string{"amount"}},
	{RoleDescription, []string{"description", "particulars", "remarks", "narration", "detail"}},
	{RoleReference, []string{"reference", "ref", "tran id", "transaction id", "cheque", "check"}},
	{RoleTransactionType, []string{"cr/dr", "dr/cr"}},
	{RoleBalance, []string{"balance"}},
	{RoleWithdrawal, []string{"withdrawal", "debit"}},
	{RoleDeposit, []string{"deposit", "credit"}},
}

// ColumnMapping assigns a column index to each detected semantic role.
// At most one column per role.
type ColumnMapping map[Role]int

// Index returns the column index for a role and whether it was mapped.
func (m ColumnMapping) Index(r Role) (int, bool) {
	idx, ok := m[r]
	return idx, ok
}

// Column annotates one header column with its detected role and a
// normalized variable name for display.
type Column struct {
	Index   int
	Header  string
	Role    Role
	VarName string
}

// MapColumns assigns semantic roles to the cells of the header row. Roles
// are tried in a fixed priority order; for each role the first unclaimed
// column whose normalized header contains one of the role's keyword
// variants is claimed. Columns matching no role are tagged RoleSkip but
// still annotated with a variable name for preview purposes.
func MapColumns(headerRow []grid.Cell) (ColumnMapping, []Column) {
	mapping := make(ColumnMapping)
	claimed := make(map[int]bool)

	for _, entry := range roleKeywords {
		if _, done := mapping[entry.role]; done {
			continue
		}
		for idx, cell := range headerRow {
			if claimed[idx] || !cell.IsText() {
				continue
			}
			// Periods are stripped so that "Txn. Date" or "Ref. No"
			// still match.
			normalized := strings.ReplaceAll(strings.ToLower(cell.Text()), ".", "")
			for _, keyword := range entry.keywords {
				if strings.Contains(normalized, keyword) {
					mapping[entry.role] = idx
					claimed[idx] = true
					break
				}
			}
			if claimed[idx] {
				break
			}
		}
	}

	columns := make([]Column, len(headerRow))
	roleByIndex := make(map[int]Role, len(mapping))
	for role, idx := range mapping {
		roleByIndex[idx] = role
	}
	for idx, cell := range headerRow {
		role, ok := roleByIndex[idx]
		if !ok {
			role = RoleSkip
		}
		columns[idx] = Column{
			Index:   idx,
			Header:  cell.String(),
			Role:    role,
			VarName: variableName(cell.String()),
		}
	}

	return mapping, columns
}

var nonVarChars = regexp.MustCompile(`[^a-z0-9_]+`)

// variableName normalizes a header cell into a snake_case identifier:
// unicode-folded, lowercased, spaces to underscores, punctuation stripped.
func variableName(header string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, header)
	if err != nil {
		folded = header
	}

	name := strings.ToLower(strings.TrimSpace(folded))
	name = strings.ReplaceAll(name, " ", "_")
	name = nonVarChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "_")
	return name
}
