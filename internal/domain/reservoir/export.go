package reservoir

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{ //nolint:gochecknoglobals // export layout
	ColDate, ColReservoir, ColMunicipality, ColLatitude, ColLongitude,
	ColVolume, ColPercent, ColSpillway, ColLevel, "Sangria",
}

const sheetName = "Reservatorios"

// ExportFilename returns "reservatorios_YYYYMMDD.<ext>" for the given day.
func ExportFilename(day time.Time, ext string) string {
	return fmt.Sprintf("reservatorios_%s.%s", day.Format("20060102"), ext)
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func record(r Reading) []string {
	return []string{
		r.Date.Format("2006-01-02"),
		r.Reservoir,
		r.Municipality,
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		cell(r.Volume),
		cell(r.Percent),
		cell(r.Spillway),
		cell(r.Level),
		cell(r.Margin()),
	}
}

// WriteCSV writes readings as ';'-separated UTF-8 with a byte order mark.
func WriteCSV(w io.Writer, readings []Reading) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("reservoir: csv bom: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("reservoir: csv header: %w", err)
	}
	for _, r := range readings {
		if err := cw.Write(record(r)); err != nil {
			return fmt.Errorf("reservoir: csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes readings as a single-sheet workbook.
func WriteXLSX(w io.Writer, readings []Reading) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("reservoir: xlsx sheet: %w", err)
	}
	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("reservoir: xlsx header: %w", err)
	}
	for i, r := range readings {
		row := []interface{}{
			r.Date.Format("02/01/2006"), r.Reservoir, r.Municipality, r.Latitude, r.Longitude,
			value(r.Volume), value(r.Percent), value(r.Spillway), value(r.Level), value(r.Margin()),
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("reservoir: xlsx cell: %w", err)
		}
		if err := f.SetSheetRow(sheetName, axis, &row); err != nil {
			return fmt.Errorf("reservoir: xlsx row: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("reservoir: xlsx write: %w", err)
	}
	return nil
}

func value(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
