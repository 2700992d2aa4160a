package services

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// NormalizeStats enthält Kennzahlen zur Normalisierung.
type NormalizeStats struct {
	NumWords     int `json:"num_words"`
	NumChars     int `json:"num_chars"`
	HyphenFixes  int `json:"hyphen_fixes"`
	DroppedLines int `json:"dropped_lines"`
}

// TextNormalizer bereitet Abstracts und gescrapte PMC-Volltexte für die
// KI-Klassifikation auf: Unicode-Normalisierung, Ligaturen, Trennstriche,
// Seiten-Boilerplate und Whitespace.
type TextNormalizer struct {
	logger *zap.Logger
}

// NewTextNormalizer erstellt einen neuen TextNormalizer.
func NewTextNormalizer(logger *zap.Logger) *TextNormalizer {
	return &TextNormalizer{logger: logger}
}

var (
	// Typografische Ligaturen aus PDF-Extrakten, die Suchbegriffe und
	// Prompts verfälschen würden.
	ligatures = strings.NewReplacer(
		"ﬁ", "fi", "ﬂ", "fl", "ﬀ", "ff",
		"ﬃ", "ffi", "ﬄ", "ffl", "ﬆ", "st",
	)

	// Worttrennung am Zeilenende: Buchstabe/Ziffer, Bindestrich, Umbruch,
	// kleiner Anfangsbuchstabe der Folgezeile.
	hyphenBreakRE = regexp.MustCompile(`(?m)([\p{L}\p{N}])-(?:\r?\n)([\p{Ll}])`)

	horizontalWSRE = regexp.MustCompile("[\t\f\v ]+")
	multiNewlineRE = regexp.MustCompile(`\n{3,}`)
	pageNumberRE   = regexp.MustCompile(`^(?:[Pp]age\s*)?\d+(?:\s*/\s*\d+)?$`)
)

// NormalizeAbstract säubert ein EFetch-Abstract. Abstracts kommen als ein
// Block, daher reicht Unicode- und Whitespace-Behandlung.
func (tn *TextNormalizer) NormalizeAbstract(s string) string {
	return collapseWhitespace(foldText(s))
}

// NormalizeFullText säubert einen gescrapten PMC-Volltext. Navigationszeilen
// der PMC-Seite und Artefaktzeilen werden verworfen.
func (tn *TextNormalizer) NormalizeFullText(s string) (string, NormalizeStats) {
	var stats NormalizeStats

	s = foldText(s)
	s, stats.HyphenFixes = fixHyphenation(s)

	lines := splitLines(s)
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && (isBoilerplate(trimmed) || isLikelyPageNumber(trimmed)) {
			stats.DroppedLines++
			continue
		}
		kept = append(kept, line)
	}
	s = collapseWhitespace(strings.Join(kept, "\n"))

	stats.NumWords = wordCount(s)
	stats.NumChars = len([]rune(s))
	if tn.logger != nil {
		tn.logger.Debug("Volltext normalisiert",
			zap.Int("words", stats.NumWords),
			zap.Int("dropped_lines", stats.DroppedLines),
			zap.Int("hyphen_fixes", stats.HyphenFixes))
	}
	return s, stats
}

// boilerplatePrefixes sind Navigations- und Chrome-Zeilen der PMC-Seite, die
// im gescrapten Text landen und für die Klassifikation wertlos sind.
var boilerplatePrefixes = []string{
	"An official website of the United States government",
	"Official websites use .gov",
	"Secure .gov websites use HTTPS",
	"Skip to main content",
	"Search in PMC",
	"Search in PubMed",
	"View on publisher site",
	"Download PDF",
	"Add to Collections",
	"As a library, NLM provides access to scientific literature",
	"PERMALINK",
	"Back to Top",
	"Log in",
	"Here's how you know",
}

func isBoilerplate(line string) bool {
	for _, p := range boilerplatePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// foldText ersetzt Ligaturen und bringt den Text in NFC-Form.
func foldText(s string) string {
	return norm.NFC.String(ligatures.Replace(s))
}

// fixHyphenation entfernt Trennstriche am Zeilenende. Beispiel:
// "ab-\nweichung" -> "abweichung". Liefert die Anzahl der Reparaturen mit.
func fixHyphenation(s string) (string, int) {
	fixes := 0
	out := hyphenBreakRE.ReplaceAllStringFunc(s, func(match string) string {
		fixes++
		return hyphenBreakRE.ReplaceAllString(match, "$1$2")
	})
	return out, fixes
}

// collapseWhitespace reduziert horizontalen Whitespace auf einzelne Spaces
// und Leerzeilenfolgen auf maximal eine Leerzeile.
func collapseWhitespace(s string) string {
	s = horizontalWSRE.ReplaceAllString(s, " ")
	s = multiNewlineRE.ReplaceAllString(s, "\n\n")
	lines := splitLines(s)
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// isLikelyPageNumber erkennt alleinstehende Seitenzahlen wie "12", "Page 3"
// oder "3 / 10".
func isLikelyPageNumber(s string) bool {
	return pageNumberRE.MatchString(strings.TrimSpace(s))
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
