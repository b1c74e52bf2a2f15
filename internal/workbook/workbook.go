// Package workbook reads and writes the xlsx files organisers exchange with
// the contest: the participant mapping list and the results export.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Participant mapping columns.
const (
	ColumnFileName     = "Jury File Name"
	ColumnParticipant  = "Participant Name"
	ColumnOriginalName = "Original File Name"
)

// Hand made mapping lists use the Turkish headers.
var (
	fileNameHeaders    = []string{ColumnFileName, "Jüri Dosya Adı"}
	participantHeaders = []string{ColumnParticipant, "Katılımcı Adı"}
)

// Sheet is one tab: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// Write renders sheets in order into a single xlsx document.
func Write(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return errors.New("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for i, sheet := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet.Name)
		} else {
			_, err = f.NewSheet(sheet.Name)
		}
		if err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, headerStyle); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

// WriteFile is Write into a new file at path.
func WriteFile(path string, sheets ...Sheet) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(out, sheets...); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	header := make([]interface{}, len(sheet.Header))
	for i, title := range sheet.Header {
		header[i] = title
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return err
	}
	if len(header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet.Name, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	for i := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &sheet.Rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadParticipantMap reads file name to participant pairs from the first
// sheet of a mapping list. Rows missing either value are skipped.
func ReadParticipantMap(r io.Reader) (map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return map[string]string{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]string{}, nil
	}

	keyCol := columnIndex(rows[0], fileNameHeaders)
	nameCol := columnIndex(rows[0], participantHeaders)
	if keyCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("sheet %s needs %q and %q columns", sheets[0], ColumnFileName, ColumnParticipant)
	}

	names := make(map[string]string, len(rows)-1)
	for _, row := range rows[1:] {
		if keyCol >= len(row) || nameCol >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[keyCol])
		name := strings.TrimSpace(row[nameCol])
		if key == "" || name == "" {
			continue
		}
		names[key] = name
	}
	return names, nil
}

func columnIndex(header []string, accepted []string) int {
	for i, title := range header {
		title = strings.TrimSpace(title)
		for _, want := range accepted {
			if strings.EqualFold(title, want) {
				return i
			}
		}
	}
	return -1
}
