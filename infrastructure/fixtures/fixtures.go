package fixtures

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the clients page exports and re-imports
const SheetName = "All Clients Database"

// Header lists the importer's recognised columns
var Header = []string{
	"Client Name",
	"Contact Number",
	"Email",
	"Type",
	"Status",
	"Next Call Date",
	"Follow-up Frequency",
	"Notes",
}

// ValidClients are imported by the happy-path import scenario
var ValidClients = [][]string{
	{"Test Client A", "9876500001", "test.client.a@example.com", "Prospect", "Active", "02/15/2026", "Weekly", "imported by e2e"},
	{"Test Client B", "9876500002", "test.client.b@example.com", "User", "Active", "02/16/2026", "Monthly", "imported by e2e"},
	{"Test Client C", "9876500003", "test.client.c@example.com", "Associate", "Active", "02/17/2026", "Bi-Weekly", "imported by e2e"},
}

// InvalidClients each break one importer rule: missing name, short mobile, bad date
var InvalidClients = [][]string{
	{"", "9876500004", "missing.name@example.com", "Prospect", "Active", "02/15/2026", "Weekly", "no name"},
	{"Short Mobile", "12345", "short.mobile@example.com", "Prospect", "Active", "02/15/2026", "Weekly", "mobile under 10 digits"},
	{"Bad Date", "9876500006", "bad.date@example.com", "Prospect", "Active", "2026-31-31", "Weekly", "date not MM/DD/YYYY"},
}

// Fixture is one generated upload file
type Fixture struct {
	Var  string // placeholder name scenarios reference
	Name string // file name inside the fixtures directory
	Rows [][]string
}

// All returns every fixture the upload scenarios use
func All() []Fixture {
	return []Fixture{
		{Var: "FIXTURE_CLIENTS_XLSX", Name: "clients_import.xlsx", Rows: ValidClients},
		{Var: "FIXTURE_INVALID_XLSX", Name: "invalid_clients.xlsx", Rows: InvalidClients},
		{Var: "FIXTURE_CLIENTS_CSV", Name: "clients_import.csv", Rows: ValidClients},
		{Var: "FIXTURE_INVALID_CSV", Name: "invalid_clients.csv", Rows: InvalidClients},
	}
}

// Paths - returns placeholder -> absolute path without writing anything
func Paths(dir string) (map[string]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fixtures directory: %w", err)
	}

	vars := make(map[string]string)
	for _, fx := range All() {
		vars[fx.Var] = filepath.Join(absDir, fx.Name)
	}
	return vars, nil
}

// Generate - writes every fixture into dir and returns placeholder -> absolute path
func Generate(dir string) (map[string]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fixtures directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create fixtures directory: %w", err)
	}

	vars := make(map[string]string)
	for _, fx := range All() {
		path := filepath.Join(absDir, fx.Name)

		switch filepath.Ext(fx.Name) {
		case ".xlsx":
			err = WriteXLSX(path, fx.Rows)
		case ".csv":
			err = WriteCSV(path, fx.Rows)
		default:
			err = fmt.Errorf("unsupported fixture type %s", fx.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", fx.Name, err)
		}

		vars[fx.Var] = path
	}

	return vars, nil
}

// WriteXLSX - writes a workbook with the importer header and rows
func WriteXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "H1", bold); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetName, "A", "H", 22); err != nil {
		return err
	}

	return f.SaveAs(path)
}

// WriteCSV - writes the same table as comma separated values
func WriteCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(Header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}
