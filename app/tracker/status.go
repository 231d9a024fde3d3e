package tracker

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status is a stage of the application pipeline. The set of valid statuses is closed,
// but a status read back from storage may carry a label outside of it; such a value keeps
// the raw label and reports IsKnown() == false.
type Status struct {
	name  string
	index int // 1-based position in the vocabulary, 0 for labels outside of it
}

// vocabulary, in pipeline order
var (
	StatusApplied            = Status{name: "Applied", index: 1}
	StatusPhoneScreen        = Status{name: "Phone Screen", index: 2}
	StatusTechnicalInterview = Status{name: "Technical Interview", index: 3}
	StatusOnsiteInterview    = Status{name: "Onsite Interview", index: 4}
	StatusFinalInterview     = Status{name: "Final Interview", index: 5}
	StatusOffer              = Status{name: "Offer", index: 6}
	StatusRejected           = Status{name: "Rejected", index: 7}
	StatusWithdrawn          = Status{name: "Withdrawn", index: 8}
	StatusOnHold             = Status{name: "On Hold", index: 9}
)

var statusValues = []Status{
	StatusApplied, StatusPhoneScreen, StatusTechnicalInterview, StatusOnsiteInterview,
	StatusFinalInterview, StatusOffer, StatusRejected, StatusWithdrawn, StatusOnHold,
}

// StatusValues returns all valid statuses in pipeline order
func StatusValues() []Status {
	res := make([]Status, len(statusValues))
	copy(res, statusValues)
	return res
}

// StatusNames returns labels of all valid statuses in pipeline order
func StatusNames() []string {
	res := make([]string, 0, len(statusValues))
	for _, s := range statusValues {
		res = append(res, s.name)
	}
	return res
}

// ParseStatus converts a label to Status. The label is trimmed and must match
// one of the vocabulary labels exactly, including case.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	for _, s := range statusValues {
		if s.name == v {
			return s, nil
		}
	}
	return Status{}, Validationf("invalid status %q, must be one of: %s", v, strings.Join(StatusNames(), ", "))
}

// StatusFromLabel converts a stored label to Status without failing.
// Labels outside of the vocabulary are preserved as-is.
func StatusFromLabel(v string) Status {
	if s, err := ParseStatus(v); err == nil {
		return s
	}
	return Status{name: v}
}

// String returns the status label
func (s Status) String() string { return s.name }

// IsKnown reports whether the status belongs to the vocabulary
func (s Status) IsKnown() bool { return s.index > 0 }

// IsZero reports whether the status is unset
func (s Status) IsZero() bool { return s.name == "" }

// Index returns 1-based pipeline position, 0 for unknown statuses
func (s Status) Index() int { return s.index }

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) { return []byte(s.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler, accepts only valid statuses
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Value implements driver.Valuer
func (s Status) Value() (driver.Value, error) { return s.name, nil }

// Scan implements sql.Scanner. Unknown labels are kept, not rejected.
func (s *Status) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = Status{}
	case string:
		*s = StatusFromLabel(v)
	case []byte:
		*s = StatusFromLabel(string(v))
	default:
		return fmt.Errorf("can't scan %T into Status", value)
	}
	return nil
}
