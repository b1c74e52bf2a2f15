package organizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/photo-contest-api/internal/workbook"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestOrganize(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "archive")
	destination := filepath.Join(root, "pool")

	writeFile(t, filepath.Join(source, "Mehmet Kaya", "b.PNG"), "mehmet-b")
	writeFile(t, filepath.Join(source, "Mehmet Kaya", "a.jpg"), "mehmet-a")
	writeFile(t, filepath.Join(source, "Ayşe Yılmaz", "sunset.JPG"), "ayse")
	writeFile(t, filepath.Join(source, "Ayşe Yılmaz", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(source, ".hidden", "x.jpg"), "ignored")
	writeFile(t, filepath.Join(source, "loose.jpg"), "ignored")
	writeFile(t, filepath.Join(destination, "stale.jpg"), "old")

	result, err := Organize(Options{Source: source, Destination: destination}, zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, []Entry{
		{FileName: "ENTRY_ID_001.JPG", Participant: "Ayşe Yılmaz", OriginalName: "sunset.JPG"},
		{FileName: "ENTRY_ID_002.jpg", Participant: "Mehmet Kaya", OriginalName: "a.jpg"},
		{FileName: "ENTRY_ID_003.PNG", Participant: "Mehmet Kaya", OriginalName: "b.PNG"},
	}, result.Entries)

	copied, err := os.ReadFile(filepath.Join(destination, "ENTRY_ID_002.jpg"))
	require.NoError(t, err)
	require.Equal(t, "mehmet-a", string(copied))

	_, err = os.Stat(filepath.Join(destination, "stale.jpg"))
	require.True(t, os.IsNotExist(err))

	require.Equal(t, filepath.Join(destination, "participants.xlsx"), result.DirectoryPath)
	book, err := excelize.OpenFile(result.DirectoryPath)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("Participants")
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{workbook.ColumnFileName, workbook.ColumnParticipant, workbook.ColumnOriginalName},
		{"ENTRY_ID_001.JPG", "Ayşe Yılmaz", "sunset.JPG"},
		{"ENTRY_ID_002.jpg", "Mehmet Kaya", "a.jpg"},
		{"ENTRY_ID_003.PNG", "Mehmet Kaya", "b.PNG"},
	}, rows)

	mapping, err := os.Open(result.DirectoryPath)
	require.NoError(t, err)
	defer mapping.Close()
	names, err := workbook.ReadParticipantMap(mapping)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"ENTRY_ID_001.JPG": "Ayşe Yılmaz",
		"ENTRY_ID_002.jpg": "Mehmet Kaya",
		"ENTRY_ID_003.PNG": "Mehmet Kaya",
	}, names)
}

func TestOrganizeRejectsBadPaths(t *testing.T) {
	root := t.TempDir()

	_, err := Organize(Options{Source: root, Destination: root}, zerolog.Nop())
	require.Error(t, err)

	_, err = Organize(Options{Source: filepath.Join(root, "missing"), Destination: filepath.Join(root, "out")}, zerolog.Nop())
	require.Error(t, err)

	file := filepath.Join(root, "file.txt")
	writeFile(t, file, "x")
	_, err = Organize(Options{Source: file, Destination: filepath.Join(root, "out")}, zerolog.Nop())
	require.Error(t, err)
}

func TestOrganizeSkipsDestinationInsideSource(t *testing.T) {
	source := t.TempDir()
	writeFile(t, filepath.Join(source, "Ali", "1.jpeg"), "ali")

	result, err := Organize(Options{Source: source, Destination: filepath.Join(source, "_pool"), Prefix: "P"}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, "P001.jpeg", result.Entries[0].FileName)
}
