package legacy

import (
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// ExportSource reads both tables from a realtime database JSON export.
type ExportSource struct {
	path      string
	prodTable string
	testTable string
}

func NewExportSource(path string) *ExportSource {
	return &ExportSource{path: path, prodTable: ProdTable, testTable: TestTable}
}

// WithTables overrides the table keys looked up in the export.
func (e *ExportSource) WithTables(prod, test string) *ExportSource {
	e.prodTable, e.testTable = prod, test
	return e
}

func (e *ExportSource) Read(ctx context.Context) (Tables, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return Tables{}, fmt.Errorf("read export: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return Tables{}, fmt.Errorf("export %s is not valid JSON", e.path)
	}
	prod, err := parseTable(e.prodTable, gjson.GetBytes(data, gjson.Escape(e.prodTable)))
	if err != nil {
		return Tables{}, err
	}
	test, err := parseTable(e.testTable, gjson.GetBytes(data, gjson.Escape(e.testTable)))
	if err != nil {
		return Tables{}, err
	}
	return Tables{Prod: prod, Test: test}, nil
}
