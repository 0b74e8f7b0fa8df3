package names

// NamespaceStats are the per-namespace aggregate character-class counts the
// rarity scorer weighs a name against. The store computes them from the
// snapshot; Total is the namespace's name count.
type NamespaceStats struct {
	Total           uint64 `json:"total"`
	AllDigits       uint64 `json:"all_digits"`
	AllLetters      uint64 `json:"all_letters"`
	NonAlphanumeric uint64 `json:"non_alphanumeric"`
}

// RarityBand buckets a score; lower scores are rarer.
type RarityBand string

const (
	BandUltraRare  RarityBand = "Ultra Rare"
	BandRare       RarityBand = "Rare"
	BandUncommon   RarityBand = "Uncommon"
	BandCommon     RarityBand = "Common"
	BandVeryCommon RarityBand = "Very Common"
)

// Rarity is a scored name classification.
type Rarity struct {
	Score float64    `json:"score"`
	Band  RarityBand `json:"band"`
}

// ScoreName computes the deterministic rarity score of a name string against
// its namespace statistics. Score components:
//   - base by length (shorter is rarer)
//   - the one matching pattern class weighted by its namespace frequency
//   - palindrome deduction
//   - adjacent repeated character addition
//
// The result is clamped to [0,100].
func ScoreName(name string, stats NamespaceStats) Rarity {
	score := lengthBase(len(name))

	if stats.Total > 0 {
		var classCount uint64
		switch {
		case isAllDigits(name):
			classCount = stats.AllDigits
		case isAllLowerLetters(name):
			classCount = stats.AllLetters
		case hasNonAlphanumeric(name):
			classCount = stats.NonAlphanumeric
		}
		score += 0.2 * (float64(classCount) / float64(stats.Total) * 100)
	}

	if isPalindrome(name) {
		score -= 10
	}
	if hasAdjacentRepeat(name) {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Rarity{Score: score, Band: bandFor(score)}
}

func lengthBase(n int) float64 {
	switch {
	case n <= 3:
		return 10
	case n <= 5:
		return 30
	case n <= 7:
		return 50
	case n <= 10:
		return 70
	default:
		return 90
	}
}

func bandFor(score float64) RarityBand {
	switch {
	case score <= 20:
		return BandUltraRare
	case score <= 40:
		return BandRare
	case score <= 60:
		return BandUncommon
	case score <= 80:
		return BandCommon
	default:
		return BandVeryCommon
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isAllLowerLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func hasNonAlphanumeric(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			return true
		}
	}
	return false
}

func isPalindrome(s string) bool {
	if s == "" {
		return false
	}
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		if s[i] != s[j] {
			return false
		}
	}
	return true
}

func hasAdjacentRepeat(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			return true
		}
	}
	return false
}
