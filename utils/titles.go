package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var consoleNames = []string{
	"PlayStation 3", "PS3",
	"PlayStation 4", "PS4",
	"PlayStation 5", "PS5",
	"Xbox 360", "Xbox One", "Xbox Series X",
	"Nintendo Switch", "Wii U", "PC",
}

var companyNames = []string{
	"Sony", "Microsoft", "Nintendo", "Electronic Arts", "Ubisoft",
	"Square Enix", "Activision", "Bethesda", "Capcom", "Bandai Namco",
}

var (
	titleNoise = buildNoisePattern()
	spaces     = regexp.MustCompile(`\s+`)
)

func buildNoisePattern() *regexp.Regexp {
	names := make([]string, 0, len(consoleNames)+len(companyNames))
	for _, n := range append(consoleNames, companyNames...) {
		names = append(names, regexp.QuoteMeta(n))
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}

// CleanGameTitle strips console and publisher names that barcode listings
// tend to glue onto a product title.
func CleanGameTitle(title string) string {
	cleaned := titleNoise.ReplaceAllString(title, "")
	return strings.TrimSpace(spaces.ReplaceAllString(cleaned, " "))
}

// RemoveLastWord drops the trailing word. Single words are returned as is.
func RemoveLastWord(title string) string {
	words := strings.Fields(title)
	if len(words) <= 1 {
		return title
	}
	return strings.Join(words[:len(words)-1], " ")
}

// NormalizeForSearch lowercases s and removes diacritics so that
// "Pokémon" and "pokemon" compare equal.
func NormalizeForSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
