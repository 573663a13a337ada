package domain

import (
	"regexp"
	"strconv"
)

// FieldPath addresses a leaf of the profile record, e.g. "personal.address.city"
// or "work[0].company". The empty path means "no field".
type FieldPath string

// Profile leaves addressable by matching. This is the closed set of paths the
// matcher can produce and the filler can resolve.
const (
	FieldNone FieldPath = ""

	FieldFirstName        FieldPath = "personal.firstName"
	FieldLastName         FieldPath = "personal.lastName"
	FieldFullName         FieldPath = "personal.fullName"
	FieldEmail            FieldPath = "personal.email"
	FieldPhone            FieldPath = "personal.phone"
	FieldPhoneCountryCode FieldPath = "personal.phoneCountryCode"
	FieldPhoneType        FieldPath = "personal.phoneType"
	FieldStreet           FieldPath = "personal.address.street"
	FieldStreet2          FieldPath = "personal.address.street2"
	FieldCity             FieldPath = "personal.address.city"
	FieldState            FieldPath = "personal.address.state"
	FieldZip              FieldPath = "personal.address.zip"
	FieldCountry          FieldPath = "personal.address.country"
	FieldLinkedIn         FieldPath = "personal.linkedin"
	FieldPortfolio        FieldPath = "personal.portfolio"
	FieldGitHub           FieldPath = "personal.github"

	FieldWorkCompany   FieldPath = "work[0].company"
	FieldWorkTitle     FieldPath = "work[0].title"
	FieldWorkStartDate FieldPath = "work[0].startDate"
	FieldWorkEndDate   FieldPath = "work[0].endDate"

	FieldSchool FieldPath = "education[0].school"
	FieldDegree FieldPath = "education[0].degree"
	FieldStudy  FieldPath = "education[0].field"
	FieldGPA    FieldPath = "education[0].gpa"

	FieldWorkAuthorization     FieldPath = "additionalInfo.workAuthorization"
	FieldWorkAuthorizationText FieldPath = "additionalInfo.workAuthorizationText"
	FieldSponsorshipRequired   FieldPath = "additionalInfo.sponsorshipRequired"
	FieldVeteranStatus         FieldPath = "additionalInfo.veteranStatus"
	FieldDisability            FieldPath = "additionalInfo.disability"
	FieldGender                FieldPath = "additionalInfo.gender"
	FieldEthnicity             FieldPath = "additionalInfo.ethnicity"

	FieldCoverLetter FieldPath = "coverLetter"
)

var knownFields = map[FieldPath]bool{
	FieldFirstName: true, FieldLastName: true, FieldFullName: true, FieldEmail: true,
	FieldPhone: true, FieldPhoneCountryCode: true, FieldPhoneType: true,
	FieldStreet: true, FieldStreet2: true, FieldCity: true, FieldState: true,
	FieldZip: true, FieldCountry: true, FieldLinkedIn: true, FieldPortfolio: true,
	FieldGitHub: true, FieldWorkCompany: true, FieldWorkTitle: true,
	FieldWorkStartDate: true, FieldWorkEndDate: true, FieldSchool: true,
	FieldDegree: true, FieldStudy: true, FieldGPA: true, FieldWorkAuthorization: true,
	FieldWorkAuthorizationText: true, FieldSponsorshipRequired: true,
	FieldVeteranStatus: true, FieldDisability: true, FieldGender: true,
	FieldEthnicity: true, FieldCoverLetter: true,
}

// IsValid reports whether the path belongs to the closed set of profile leaves
func (p FieldPath) IsValid() bool {
	return knownFields[p]
}

// IsComputed reports whether the path has no storage slot of its own
func (p FieldPath) IsComputed() bool {
	return p == FieldFullName
}

func (p FieldPath) String() string {
	return string(p)
}

var indexedPath = regexp.MustCompile(`^(.+)\[(\d+)\]\.(.+)$`)

// SplitIndexed splits "base[i].leaf" into its parts. ok is false for paths
// without an array index.
func (p FieldPath) SplitIndexed() (base string, index int, leaf string, ok bool) {
	m := indexedPath.FindStringSubmatch(string(p))
	if m == nil {
		return "", 0, "", false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return m[1], index, m[3], true
}
