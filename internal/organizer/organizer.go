// Package organizer turns participant folders into the anonymised jury pool.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/workbook"
)

// DirectoryFile is the participant mapping list written next to the pool.
const DirectoryFile = "participants.xlsx"

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// Entry records where one anonymised photo came from.
type Entry struct {
	FileName     string `json:"fileName"`
	Participant  string `json:"participant"`
	OriginalName string `json:"originalName"`
}

// Options configures a run.
type Options struct {
	Source      string
	Destination string
	Prefix      string
}

// Result summarises a run.
type Result struct {
	Entries       []Entry
	DirectoryPath string
}

// Organize copies every image under Source/<participant>/ into Destination as
// <Prefix>NNN<ext>, numbered in folder then file order, and writes the
// participant directory. Destination is emptied first.
func Organize(opts Options, logger zerolog.Logger) (Result, error) {
	if opts.Prefix == "" {
		opts.Prefix = "ENTRY_ID_"
	}
	source, err := filepath.Abs(opts.Source)
	if err != nil {
		return Result{}, err
	}
	destination, err := filepath.Abs(opts.Destination)
	if err != nil {
		return Result{}, err
	}
	if source == destination {
		return Result{}, errors.New("source and destination must differ")
	}

	info, err := os.Stat(source)
	if err != nil {
		return Result{}, fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("source %s is not a directory", source)
	}

	if err := resetDirectory(destination); err != nil {
		return Result{}, err
	}

	participants, err := os.ReadDir(source)
	if err != nil {
		return Result{}, err
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].Name() < participants[j].Name() })

	var entries []Entry
	counter := 1
	for _, folder := range participants {
		if !folder.IsDir() || strings.HasPrefix(folder.Name(), ".") {
			continue
		}
		folderPath := filepath.Join(source, folder.Name())
		if folderPath == destination {
			continue
		}

		files, err := os.ReadDir(folderPath)
		if err != nil {
			return Result{}, err
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

		for _, file := range files {
			if !file.Type().IsRegular() {
				continue
			}
			ext := filepath.Ext(file.Name())
			if _, ok := imageExtensions[strings.ToLower(ext)]; !ok {
				continue
			}

			name := fmt.Sprintf("%s%03d%s", opts.Prefix, counter, ext)
			if err := copyFile(filepath.Join(folderPath, file.Name()), filepath.Join(destination, name)); err != nil {
				return Result{}, err
			}
			logger.Debug().Str("participant", folder.Name()).Str("file", name).Msg("photo copied")

			entries = append(entries, Entry{FileName: name, Participant: folder.Name(), OriginalName: file.Name()})
			counter++
		}
	}

	directoryPath := filepath.Join(destination, DirectoryFile)
	if err := writeDirectory(directoryPath, entries); err != nil {
		return Result{}, err
	}

	logger.Info().Int("photos", len(entries)).Str("destination", destination).Msg("jury pool organised")
	return Result{Entries: entries, DirectoryPath: directoryPath}, nil
}

func resetDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("clear destination: %w", err)
	}
	return os.MkdirAll(path, 0o755)
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Chtimes(to, info.ModTime(), info.ModTime())
}

func writeDirectory(path string, entries []Entry) error {
	rows := make([][]interface{}, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []interface{}{entry.FileName, entry.Participant, entry.OriginalName})
	}
	return workbook.WriteFile(path, workbook.Sheet{
		Name:   "Participants",
		Header: []string{workbook.ColumnFileName, workbook.ColumnParticipant, workbook.ColumnOriginalName},
		Rows:   rows,
	})
}
