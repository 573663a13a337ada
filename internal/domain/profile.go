package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Profile is the applicant record the filler reads from. Its JSON form is the
// shape stored under the "profile" key. Empty strings are omitted so that a
// blank leaf resolves as absent.
type Profile struct {
	Personal       Personal       `json:"personal"`
	Work           []WorkEntry    `json:"work,omitempty"`
	Education      []Education    `json:"education,omitempty"`
	AdditionalInfo AdditionalInfo `json:"additionalInfo"`
	CoverLetter    string         `json:"coverLetter,omitempty"`
}

// Personal holds contact details
type Personal struct {
	FirstName        string  `json:"firstName,omitempty"`
	LastName         string  `json:"lastName,omitempty"`
	Email            string  `json:"email,omitempty"`
	Phone            string  `json:"phone,omitempty"`
	PhoneCountryCode string  `json:"phoneCountryCode,omitempty"`
	PhoneType        string  `json:"phoneType,omitempty"`
	Address          Address `json:"address"`
	LinkedIn         string  `json:"linkedin,omitempty"`
	Portfolio        string  `json:"portfolio,omitempty"`
	GitHub           string  `json:"github,omitempty"`
}

// Address is a postal address
type Address struct {
	Street  string `json:"street,omitempty"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// WorkEntry is one position in the work history
type WorkEntry struct {
	Company   string `json:"company,omitempty"`
	Title     string `json:"title,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Education is one entry of the education history
type Education struct {
	School string     `json:"school,omitempty"`
	Degree string     `json:"degree,omitempty"`
	Field  string     `json:"field,omitempty"`
	GPA    FlexString `json:"gpa,omitempty"`
}

// AdditionalInfo holds the equal-opportunity and eligibility answers. Yes/no
// answers are optional so an unanswered question stays absent.
type AdditionalInfo struct {
	WorkAuthorization     string `json:"workAuthorization,omitempty"`
	WorkAuthorizationText string `json:"workAuthorizationText,omitempty"`
	SponsorshipRequired   *bool  `json:"sponsorshipRequired,omitempty"`
	VeteranStatus         string `json:"veteranStatus,omitempty"`
	Disability            string `json:"disability,omitempty"`
	Gender                string `json:"gender,omitempty"`
	Ethnicity             string `json:"ethnicity,omitempty"`
}

// FlexString accepts either a JSON string or a JSON number
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// Bool returns a pointer to b, for optional yes/no answers
func Bool(b bool) *bool {
	return &b
}

// Tree returns the profile as a generic JSON tree (maps, slices, strings,
// booleans) for path traversal.
func (p *Profile) Tree() (map[string]any, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding profile: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decoding profile tree: %w", err)
	}
	return tree, nil
}

// Merge applies a partial update. Top-level keys in partial replace the
// corresponding sections wholesale; other sections are kept.
func (p *Profile) Merge(partial map[string]json.RawMessage) (*Profile, error) {
	base := map[string]json.RawMessage{}
	if p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding profile: %w", err)
		}
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("decoding profile sections: %w", err)
		}
	}
	for k, v := range partial {
		base[k] = v
	}

	data, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encoding merged profile: %w", err)
	}
	var merged Profile
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, ValidationError("profile", "invalid profile update: "+err.Error())
	}
	return &merged, nil
}

// Stringify renders a resolved profile value the way it is written into a
// form control.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case FlexString:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
