// internal/workers/dialogue/quality-scorer/config.go
package qualityscorer

type Config struct {
	TrustedDomains    []string
	CommercialDomains []string
	InstitutionalTLDs []string
	RecentYears       []string
}

func LoadConfig() *Config {
	return &Config{
		TrustedDomains: []string{
			"wikipedia.org", "github.com", "stackoverflow.com",
			"medium.com", "arxiv.org", "researchgate.net",
			"ieee.org", "acm.org", "springer.com", "nature.com",
			"sciencedirect.com", "pubmed.ncbi.nlm.nih.gov",
		},
		CommercialDomains: []string{
			"microsoft.com", "google.com", "amazon.com",
			"ibm.com", "oracle.com", "redhat.com",
		},
		InstitutionalTLDs: []string{".edu", ".gov", ".org"},
		RecentYears:       []string{"2022", "2023", "2024", "2025", "2026"},
	}
}
