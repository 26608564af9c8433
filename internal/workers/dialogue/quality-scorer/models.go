// internal/workers/dialogue/quality-scorer/models.go
package qualityscorer

import "dialogue-engine/internal/models"

type Input struct {
	Items []models.EvidenceItem `json:"items"`
}

type Output struct {
	Items        []models.EvidenceItem `json:"items"`
	AverageScore float64               `json:"averageScore"`
}

// Breakdown lists every adjustment applied to one item, in hundredths.
type Breakdown struct {
	Base        int            `json:"base"`
	Adjustments map[string]int `json:"adjustments"`
	Score       float64        `json:"score"`
}

var (
	structureMarkers = []string{
		"1.", "2.", "3.",
		"•", "-", "*",
		"##", "###",
		"Conclusion:", "Summary:", "Introduction:",
	}
	technicalTerms = []string{
		"algorithm", "framework", "library", "database",
		"api", "implementation", "architecture", "methodology",
		"analysis", "research", "study", "experiment",
	}
	titleCueWords = []string{"how", "what", "guide", "tutorial", "overview"}
	spamPhrases   = []string{
		"click here", "buy now", "limited time", "advertisement",
		"sponsored", "affiliate", "discount", "sale",
	}
	garbledMarkers    = []string{"??????", "!!!!!!", "КАПСЛОК ТЕКСТ"}
	monthNames        = []string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"}
	authorshipMarkers = []string{"author:", "by ", "written by"}
	citationMarkers   = []string{"reference", "source", "citation"}
)
