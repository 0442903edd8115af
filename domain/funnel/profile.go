package funnel

// Gender codes after cleaning. X is folded into U at load time.
const (
	GenderMale    = "M"
	GenderFemale  = "F"
	GenderUnknown = "U"
	GenderOther   = "X"
)

// ClientProfile is one demographic row per client. Nil numeric fields are nulls
// that cleaning has not filled yet.
type ClientProfile struct {
	ClientID         string   `json:"client_id"`
	TenureYears      *float64 `json:"client_tenure_years"`
	TenureMonths     *float64 `json:"client_tenure_months"`
	Age              *float64 `json:"age"`
	Gender           string   `json:"gender"`
	NumberOfAccounts *float64 `json:"number_of_accounts"`
	Balance          *float64 `json:"balance"`
	Calls6Months     *float64 `json:"calls_6_months"`
	Logons6Months    *float64 `json:"logons_6_months"`
}

// NumericField names one nullable numeric column of the profile table
type NumericField string

const (
	FieldTenureYears      NumericField = "client_tenure_years"
	FieldTenureMonths     NumericField = "client_tenure_months"
	FieldAge              NumericField = "age"
	FieldNumberOfAccounts NumericField = "number_of_accounts"
	FieldBalance          NumericField = "balance"
	FieldCalls6Months     NumericField = "calls_6_months"
	FieldLogons6Months    NumericField = "logons_6_months"
)

// NumericFields lists the profile columns in table order
func NumericFields() []NumericField {
	return []NumericField{
		FieldTenureYears, FieldTenureMonths, FieldAge, FieldNumberOfAccounts,
		FieldBalance, FieldCalls6Months, FieldLogons6Months,
	}
}

// IntegerFields are cast to whole numbers after filling
func IntegerFields() []NumericField {
	return []NumericField{
		FieldTenureYears, FieldTenureMonths, FieldNumberOfAccounts,
		FieldCalls6Months, FieldLogons6Months,
	}
}

// Field returns a pointer to the slot holding a numeric column
func (p *ClientProfile) Field(f NumericField) **float64 {
	switch f {
	case FieldTenureYears:
		return &p.TenureYears
	case FieldTenureMonths:
		return &p.TenureMonths
	case FieldAge:
		return &p.Age
	case FieldNumberOfAccounts:
		return &p.NumberOfAccounts
	case FieldBalance:
		return &p.Balance
	case FieldCalls6Months:
		return &p.Calls6Months
	case FieldLogons6Months:
		return &p.Logons6Months
	}
	return nil
}

// Clone copies the profile including its optional values
func (p ClientProfile) Clone() ClientProfile {
	out := p
	for _, f := range NumericFields() {
		slot := out.Field(f)
		if *slot != nil {
			v := **slot
			*slot = &v
		}
	}
	return out
}

// IndexProfiles maps client IDs to profiles; the first row wins on duplicates
func IndexProfiles(profiles []ClientProfile) map[string]ClientProfile {
	index := make(map[string]ClientProfile, len(profiles))
	for _, p := range profiles {
		if _, ok := index[p.ClientID]; !ok {
			index[p.ClientID] = p
		}
	}
	return index
}

// Float returns a pointer to v, for building optional fields
func Float(v float64) *float64 {
	return &v
}
