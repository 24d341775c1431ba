package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for _, n := range []string{"E-1", "E-2", "E-3"} {
		if _, err := env.files.Create(ctx, validInput(n)); err != nil {
			t.Fatalf("Create(%s): %v", n, err)
		}
	}

	var buf bytes.Buffer
	n, err := env.files.ExportXLSX(ctx, "", &buf)
	if err != nil {
		t.Fatalf("ExportXLSX() ошибка: %v", err)
	}
	if n != 3 {
		t.Errorf("выгружено %d строк, ожидалось 3", n)
	}

	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("результат не XLSX: %v", err)
	}
	defer func() { _ = book.Close() }()

	rows, err := book.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows() ошибка: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("строк в листе %d, ожидалось 4 (с заголовком)", len(rows))
	}
	if rows[0][0] != "Serial Number" {
		t.Errorf("заголовок = %v", rows[0])
	}
	for _, row := range rows[1:] {
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			t.Errorf("неполная строка: %v", row)
		}
	}
}
