package convo

import (
	"regexp"
	"strconv"
	"strings"
)

// knownBreeds are the commercial broiler strains recognized in queries.
// Longer names come first so "Ross 308" matches before a bare "Ross".
var knownBreeds = []string{
	"Ross 308 AP",
	"Ross 308",
	"Ross 708",
	"Cobb 500",
	"Cobb 700",
	"Arbor Acres Plus",
	"Arbor Acres",
	"Hubbard Flex",
	"Hubbard",
}

// metricKeywords map query phrasings to a canonical metric slot value.
// Checked in order; first hit wins.
var metricKeywords = []struct {
	phrase string
	metric string
}{
	{"feed conversion ratio", "fcr"},
	{"feed conversion", "fcr"},
	{"fcr", "fcr"},
	{"body weight", "body weight"},
	{"bodyweight", "body weight"},
	{"live weight", "body weight"},
	{"weight gain", "daily gain"},
	{"daily gain", "daily gain"},
	{"adg", "daily gain"},
	{"mortality", "mortality"},
	{"livability", "livability"},
	{"epef", "epef"},
	{"production efficiency", "epef"},
	{"feed intake", "feed intake"},
	{"water intake", "water intake"},
	{"uniformity", "uniformity"},
	{"carcass yield", "yield"},
	{"breast yield", "yield"},
	{"yield", "yield"},
}

var phaseKeywords = []string{"starter", "grower", "finisher", "withdrawal", "brooding"}

var (
	// "day 21" form. Checked before the "N days" form so breed numbers
	// ("Cobb 500 day 21") never swallow the day marker.
	dayNumRe = regexp.MustCompile(`(?i)\bday\s+(\d{1,3})\b`)

	// "35 days", "21-day", "35d" form.
	numDayRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*d(?:ays?)?\b`)

	// "week 5" and "3 weeks" forms; weeks normalize to days.
	weekNumRe = regexp.MustCompile(`(?i)\bweek\s+(\d{1,2})\b`)
	numWeekRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*-?\s*w(?:eeks?)?\b`)

	femaleRe = regexp.MustCompile(`(?i)\b(?:females?|pullets?|hens?)\b`)
	maleRe   = regexp.MustCompile(`(?i)\b(?:males?|cockerels?)\b`)
	mixedRe  = regexp.MustCompile(`(?i)\b(?:as[\s-]?hatched|mixed[\s-]?sex|straight[\s-]?run)\b`)
)

// ExtractEntities pulls the structured slots out of a raw query.
// Extraction is best effort: unrecognized queries yield a zero Entities.
func ExtractEntities(query string) Entities {
	var e Entities
	lower := strings.ToLower(query)

	for _, breed := range knownBreeds {
		if strings.Contains(lower, strings.ToLower(breed)) {
			e.Breed = breed
			break
		}
	}

	switch {
	case dayNumRe.MatchString(query):
		e.AgeDays = parseFirstInt(dayNumRe.FindStringSubmatch(query)[1:])
	case numDayRe.MatchString(query):
		e.AgeDays = parseFirstInt(numDayRe.FindStringSubmatch(query)[1:])
	case weekNumRe.MatchString(query):
		e.AgeDays = parseFirstInt(weekNumRe.FindStringSubmatch(query)[1:]) * 7
	case numWeekRe.MatchString(query):
		e.AgeDays = parseFirstInt(numWeekRe.FindStringSubmatch(query)[1:]) * 7
	}

	// Female check precedes male: "female" contains "male".
	switch {
	case mixedRe.MatchString(query):
		e.Sex = "mixed"
	case femaleRe.MatchString(query):
		e.Sex = "female"
	case maleRe.MatchString(query):
		e.Sex = "male"
	}

	for _, mk := range metricKeywords {
		if strings.Contains(lower, mk.phrase) {
			e.Metric = mk.metric
			break
		}
	}

	for _, phase := range phaseKeywords {
		if strings.Contains(lower, phase) {
			e.Phase = phase
			break
		}
	}

	return e
}

// parseFirstInt returns the first non-empty capture group as an int.
func parseFirstInt(groups []string) int {
	for _, g := range groups {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
