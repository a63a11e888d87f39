package prompt

import (
	"regexp"
	"sort"
)

// cue is a content pattern that suggests a harassment category.
type cue struct {
	Label  string
	Weight float64
	re     *regexp.Regexp
}

var cues = []cue{
	{Label: "threat", Weight: 0.25, re: regexp.MustCompile(`(?i)\b(kill|hurt|shoot|stab|beat) (you|u)\b|\byou('| a)?re (dead|going to pay)\b|\bwatch your back\b`)},
	{Label: "doxxing", Weight: 0.2, re: regexp.MustCompile(`(?i)\b(i know where you live|your (home )?address|\d{1,5} [a-z]+ (street|st|avenue|ave|road|rd)\b)`)},
	{Label: "stalking", Weight: 0.2, re: regexp.MustCompile(`(?i)\b(i('| a)?m watching you|i saw you (at|with)|followed you|been following you)\b`)},
	{Label: "sexual-harassment", Weight: 0.2, re: regexp.MustCompile(`(?i)\b(send (me )?(nudes|pics)|nudes?|sexy|explicit photos?)\b`)},
	{Label: "blackmail", Weight: 0.2, re: regexp.MustCompile(`(?i)\b(or else|unless you pay|i will (post|share|leak|send) (your|these|them))\b`)},
	{Label: "impersonation", Weight: 0.1, re: regexp.MustCompile(`(?i)\b(fake (account|profile)|pretending to be|posing as)\b`)},
	{Label: "insult", Weight: 0.05, re: regexp.MustCompile(`(?i)\b(idiot|stupid|loser|worthless|pathetic|ugly)\b`)},
	{Label: "contact-info", Weight: 0.05, re: regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}|\+?\d[\d\s().-]{8,}\d`)},
}

// Match is one cue found in a text.
type Match struct {
	Label  string
	Weight float64
	Sample string
}

// DetectCues scans text and returns the matching cues, heaviest first.
func DetectCues(text string) []Match {
	if text == "" {
		return nil
	}
	out := make([]Match, 0, len(cues))
	for _, c := range cues {
		m := c.re.FindString(text)
		if m == "" {
			continue
		}
		if len(m) > 48 {
			m = m[:48] + "..."
		}
		out = append(out, Match{Label: c.Label, Weight: c.Weight, Sample: m})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}
