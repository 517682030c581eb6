package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// DocumentID derives the stable identifier for a document from its title and
// publication year. The title is lowercased and stripped of punctuation and
// spacing before hashing, so the same paper retrieved from different sources
// with cosmetic title differences maps to one identifier.
func DocumentID(title string, year int) string {
	normalized := nonAlnumRe.ReplaceAllString(strings.ToLower(title), "")
	sum := sha256.Sum256([]byte(normalized + "|" + strconv.Itoa(year)))
	return hex.EncodeToString(sum[:16])
}
