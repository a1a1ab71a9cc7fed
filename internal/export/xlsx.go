// Package export renders the seating chart as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"github.com/xuri/excelize/v2"
)

const (
	// SheetSeating lists every table with the guests seated at it.
	SheetSeating = "Seating"
	// SheetUnseated lists the guests still waiting for a table.
	SheetUnseated = "Unseated"

	defaultSheet     = "Sheet1"
	generatedLayout  = "2006-01-02 15:04 MST"
	columnWidthWide  = 28
	columnWidthShort = 12
)

var (
	seatingHeader  = []interface{}{"Table", "Capacity", "Seated", "Guest", "Seat"}
	unseatedHeader = []interface{}{"Guest", "Contact", "RSVP", "Seat"}
)

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteSeatingChart writes the chart as a two-sheet workbook.
func WriteSeatingChart(w io.Writer, chart seating.SeatingChart) error {
	workbook := excelize.NewFile()
	defer func() {
		_ = workbook.Close()
	}()

	if err := workbook.SetSheetName(defaultSheet, SheetSeating); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if _, err := workbook.NewSheet(SheetUnseated); err != nil {
		return fmt.Errorf("export: add sheet: %w", err)
	}
	headerStyle, err := workbook.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	if err := writeSeatingSheet(workbook, chart, headerStyle); err != nil {
		return err
	}
	if err := writeUnseatedSheet(workbook, chart.Unseated, headerStyle); err != nil {
		return err
	}
	workbook.SetActiveSheet(0)
	if !chart.Generated.IsZero() {
		if err := workbook.SetDocProps(&excelize.DocProperties{
			Title:       "Seating chart",
			Created:     chart.Generated.UTC().Format("2006-01-02T15:04:05Z"),
			Description: "Generated " + chart.Generated.UTC().Format(generatedLayout),
		}); err != nil {
			return fmt.Errorf("export: doc props: %w", err)
		}
	}
	if err := workbook.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeSeatingSheet(workbook *excelize.File, chart seating.SeatingChart, headerStyle int) error {
	if err := writeHeader(workbook, SheetSeating, seatingHeader, headerStyle); err != nil {
		return err
	}
	row := 2
	for _, group := range chart.Tables {
		seated := len(group.Assignments)
		if seated == 0 {
			if err := setRow(workbook, SheetSeating, row, []interface{}{group.Table.Name, group.Table.Capacity, 0, "", ""}); err != nil {
				return err
			}
			row++
			continue
		}
		for _, assignment := range group.Assignments {
			values := []interface{}{group.Table.Name, group.Table.Capacity, seated, assignment.GuestName, assignment.SeatNumber + 1}
			if err := setRow(workbook, SheetSeating, row, values); err != nil {
				return err
			}
			row++
		}
	}
	if err := workbook.SetColWidth(SheetSeating, "A", "A", columnWidthWide); err != nil {
		return err
	}
	if err := workbook.SetColWidth(SheetSeating, "D", "D", columnWidthWide); err != nil {
		return err
	}
	return workbook.SetColWidth(SheetSeating, "B", "C", columnWidthShort)
}

func writeUnseatedSheet(workbook *excelize.File, unseated []seating.GuestOccurrence, headerStyle int) error {
	if err := writeHeader(workbook, SheetUnseated, unseatedHeader, headerStyle); err != nil {
		return err
	}
	for index, occurrence := range unseated {
		values := []interface{}{
			occurrence.DisplayName,
			occurrence.ContactInfo,
			occurrence.Key.RSVPID.String(),
			occurrence.Key.SeatIndex + 1,
		}
		if err := setRow(workbook, SheetUnseated, index+2, values); err != nil {
			return err
		}
	}
	return workbook.SetColWidth(SheetUnseated, "A", "C", columnWidthWide)
}

func writeHeader(workbook *excelize.File, sheet string, header []interface{}, style int) error {
	if err := setRow(workbook, sheet, 1, header); err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := workbook.SetCellStyle(sheet, "A1", lastCell, style); err != nil {
		return fmt.Errorf("export: style header: %w", err)
	}
	return workbook.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRow(workbook *excelize.File, sheet string, row int, values []interface{}) error {
	if err := workbook.SetSheetRow(sheet, "A"+strconv.Itoa(row), &values); err != nil {
		return fmt.Errorf("export: write %s row %d: %w", sheet, row, err)
	}
	return nil
}
