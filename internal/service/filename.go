package service

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxAttachmentBaseLength = 50

// Letters with no canonical decomposition to ASCII.
var letterFolds = map[rune]string{
	'ı': "i",
	'ß': "ss",
	'ø': "o", 'Ø': "O",
	'æ': "ae", 'Æ': "AE",
	'œ': "oe", 'Œ': "OE",
	'ł': "l", 'Ł': "L",
	'đ': "d", 'Đ': "D",
	'þ': "th", 'Þ': "TH",
}

func transliterate(input string) string {
	var folded strings.Builder
	folded.Grow(len(input))
	for _, r := range input {
		if replacement, ok := letterFolds[r]; ok {
			folded.WriteString(replacement)
			continue
		}
		folded.WriteRune(r)
	}

	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(stripMarks, folded.String())
	if err != nil {
		return folded.String()
	}
	return result
}

// sanitizeTitle turns a photo title into an ASCII, hyphenated file stem.
// It returns "" when nothing usable is left.
func sanitizeTitle(title string) string {
	lowered := strings.ToLower(transliterate(title))

	var kept strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			kept.WriteRune(r)
		case unicode.IsSpace(r):
			kept.WriteRune(' ')
		}
	}

	hyphenated := strings.Join(strings.Fields(kept.String()), "-")
	for strings.Contains(hyphenated, "--") {
		hyphenated = strings.ReplaceAll(hyphenated, "--", "-")
	}
	hyphenated = strings.Trim(hyphenated, "-.")

	if len(hyphenated) > maxAttachmentBaseLength {
		hyphenated = strings.TrimRight(hyphenated[:maxAttachmentBaseLength], "-.")
	}
	return hyphenated
}

// attachmentFileName builds the name an applicant's photo is mailed under.
// index is zero based.
func attachmentFileName(title string, index int, contentType string) string {
	base := sanitizeTitle(title)
	if base == "" {
		base = fmt.Sprintf("entry-%d", index+1)
	}
	return base + extensionFor(contentType)
}

func extensionFor(contentType string) string {
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

// uniqueFileNames suffixes repeated names with -2, -3, ...
func uniqueFileNames(names []string) []string {
	seen := make(map[string]int, len(names))
	result := make([]string, len(names))
	for i, name := range names {
		seen[name]++
		if seen[name] == 1 {
			result[i] = name
			continue
		}
		ext := name[strings.LastIndex(name, "."):]
		result[i] = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), seen[name], ext)
	}
	return result
}
