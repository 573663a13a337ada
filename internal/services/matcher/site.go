package matcher

import (
	"strings"

	"github.com/jobfill/jobfill/internal/domain"
)

// hostRules maps host substrings to sites, checked in order
var hostRules = []struct {
	needles []string
	site    domain.Site
}{
	{needles: []string{"workday", "myworkdayjobs"}, site: domain.SiteWorkday},
	{needles: []string{"greenhouse"}, site: domain.SiteGreenhouse},
	{needles: []string{"lever.co"}, site: domain.SiteLever},
}

// DetectSite classifies a page host name
func DetectSite(host string) domain.Site {
	host = strings.ToLower(host)
	for _, rule := range hostRules {
		for _, needle := range rule.needles {
			if strings.Contains(host, needle) {
				return rule.site
			}
		}
	}
	return domain.SiteUnknown
}
