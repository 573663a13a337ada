package matcher

import (
	"regexp"
	"strings"

	"github.com/jobfill/jobfill/internal/domain"
)

// mapping is one row of the static label table
type mapping struct {
	re    *regexp.Regexp
	find  func(label string) []int
	field domain.FieldPath
}

// locate returns the span of the first match in label, or nil
func (m mapping) locate(label string) []int {
	if m.find != nil {
		return m.find(label)
	}
	return m.re.FindStringIndex(label)
}

func pattern(expr string, field domain.FieldPath) mapping {
	return mapping{re: regexp.MustCompile(`(?i)` + expr), field: field}
}

// staticMappings is evaluated in order; the first row that matches wins.
// E-mail comes first so that labels like "email address" never fall through
// to the street row.
var staticMappings = []mapping{
	pattern(`e-?mail|email\s*address`, domain.FieldEmail),

	pattern(`first\s*name|given\s*name|fname|vorname`, domain.FieldFirstName),
	pattern(`legal\s*first\s*name`, domain.FieldFirstName),
	pattern(`last\s*name|family\s*name|surname|lname|nachname`, domain.FieldLastName),
	pattern(`legal\s*last\s*name`, domain.FieldLastName),
	pattern(`full\s*name|your\s*name|^name$`, domain.FieldFullName),

	pattern(`phone|mobile|telephone|cell|tel(?:ephone)?\s*number`, domain.FieldPhone),
	pattern(`country\s*code|phone\s*country`, domain.FieldPhoneCountryCode),
	pattern(`phone\s*type|device\s*type`, domain.FieldPhoneType),

	{re: streetRe, find: findStreet, field: domain.FieldStreet},
	pattern(`address\s*line\s*2|apt|suite|unit`, domain.FieldStreet2),
	pattern(`^city$|city/town|municipality`, domain.FieldCity),
	pattern(`state|province|region`, domain.FieldState),
	pattern(`zip|postal\s*code|post\s*code`, domain.FieldZip),
	pattern(`^country$|country/region`, domain.FieldCountry),

	pattern(`linkedin|linked\s*in`, domain.FieldLinkedIn),
	pattern(`portfolio|personal\s*website|website\s*url`, domain.FieldPortfolio),
	pattern(`github`, domain.FieldGitHub),

	pattern(`current\s*company|company\s*name|employer|organization`, domain.FieldWorkCompany),
	pattern(`current\s*title|job\s*title|title|position|role`, domain.FieldWorkTitle),
	pattern(`start\s*date`, domain.FieldWorkStartDate),
	pattern(`end\s*date`, domain.FieldWorkEndDate),

	pattern(`school|university|college|institution`, domain.FieldSchool),
	pattern(`^degree$|degree\s*type|level\s*of\s*education`, domain.FieldDegree),
	pattern(`major|field\s*of\s*study|area\s*of\s*study|concentration`, domain.FieldStudy),
	pattern(`gpa|grade\s*point`, domain.FieldGPA),

	pattern(`authorized.*work|legally.*work|work.*authorization|eligible.*work`, domain.FieldWorkAuthorization),
	pattern(`sponsor|visa\s*sponsor|require.*sponsor`, domain.FieldSponsorshipRequired),
	pattern(`veteran|military`, domain.FieldVeteranStatus),
	pattern(`disability|disabled`, domain.FieldDisability),
	pattern(`gender|sex`, domain.FieldGender),
	pattern(`race|ethnic|ethnicity`, domain.FieldEthnicity),

	pattern(`cover\s*letter`, domain.FieldCoverLetter),
}

var (
	streetRe = regexp.MustCompile(`(?i)street|address\s*line\s*1|address`)
	// a bare "address" only counts when no later part of the line names
	// another address component
	addressPartRe = regexp.MustCompile(`(?i)city|state|zip|postal`)
)

// findStreet scans left to right like a backtracking engine would, skipping
// bare "address" hits that are followed by city/state/zip/postal on the
// same line.
func findStreet(label string) []int {
	for start := 0; start <= len(label); {
		loc := streetRe.FindStringIndex(label[start:])
		if loc == nil {
			return nil
		}
		from, to := start+loc[0], start+loc[1]
		if !strings.EqualFold(label[from:to], "address") {
			return []int{from, to}
		}
		rest := label[to:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if !addressPartRe.MatchString(rest) {
			return []int{from, to}
		}
		start = from + 1
	}
	return nil
}
