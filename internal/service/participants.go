package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noah-isme/photo-contest-api/internal/workbook"
)

// UnknownParticipant is shown when a photo id has no directory entry.
const UnknownParticipant = "Unknown"

// DefaultParticipantSuffixes are tried after the bare photo id. Photo ids are
// often registered without the extension the organiser used in the mapping.
var DefaultParticipantSuffixes = []string{".jpg", ".jpeg", ".JPG"}

// ResolveParticipant looks id up in mapping, then id+suffix for each suffix
// in order, and returns fallback when nothing matches.
func ResolveParticipant(mapping map[string]string, id string, suffixes []string, fallback string) string {
	if name, ok := mapping[id]; ok && name != "" {
		return name
	}
	for _, suffix := range suffixes {
		if name, ok := mapping[id+suffix]; ok && name != "" {
			return name
		}
	}
	return fallback
}

// ParticipantDirectory maps anonymised photo ids to participant names.
type ParticipantDirectory struct {
	names map[string]string
}

// NewParticipantDirectory wraps an in-memory mapping.
func NewParticipantDirectory(names map[string]string) ParticipantDirectory {
	if names == nil {
		names = map[string]string{}
	}
	return ParticipantDirectory{names: names}
}

// LoadParticipantDirectory reads the organiser's mapping list. An .xlsx path
// is read as a workbook with file name and participant columns, anything else
// as a JSON object of photo id to name. A missing file yields an empty
// directory.
func LoadParticipantDirectory(path string) (ParticipantDirectory, error) {
	if strings.TrimSpace(path) == "" {
		return NewParticipantDirectory(nil), nil
	}

	raw, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewParticipantDirectory(nil), nil
		}
		return ParticipantDirectory{}, fmt.Errorf("read participant directory: %w", err)
	}
	defer raw.Close()

	var names map[string]string
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		names, err = workbook.ReadParticipantMap(raw)
	} else {
		err = json.NewDecoder(raw).Decode(&names)
	}
	if err != nil {
		return ParticipantDirectory{}, fmt.Errorf("decode participant directory %s: %w", path, err)
	}
	return NewParticipantDirectory(names), nil
}

// Name resolves the display name for a photo id.
func (d ParticipantDirectory) Name(photoID string) string {
	return ResolveParticipant(d.names, photoID, DefaultParticipantSuffixes, UnknownParticipant)
}

// Len returns the number of known entries.
func (d ParticipantDirectory) Len() int {
	return len(d.names)
}

// FormatJurorName derives a display name from a juror email:
// "ayse.yilmaz@dpu.edu.tr" becomes "Ayse Yilmaz".
func FormatJurorName(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return email
	}

	segments := strings.Split(email[:at], ".")
	words := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		runes := []rune(segment)
		words = append(words, strings.ToUpper(string(runes[0]))+string(runes[1:]))
	}
	return strings.Join(words, " ")
}
