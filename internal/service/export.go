// export.go — выгрузка реестра файлов в XLSX.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bigkaa/filetracker/internal/domain/model"
)

const exportSheet = "Files"

var exportHeader = []any{
	"Serial Number", "File Number", "File Name", "Section", "Owner", "Status", "Created At", "File ID",
}

// ExportXLSX записывает в w книгу со всеми файлами, подходящими под query.
// Файлы читаются страницами по MaxPageLimit.
func (s *FileService) ExportXLSX(ctx context.Context, query string, w io.Writer) (int, error) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetName(book.GetSheetName(0), exportSheet); err != nil {
		return 0, fmt.Errorf("переименование листа: %w", err)
	}
	if err := book.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, fmt.Errorf("запись заголовка: %w", err)
	}

	rows := 0
	for page := 1; ; page++ {
		res, err := s.List(ctx, page, MaxPageLimit, query)
		if err != nil {
			return 0, err
		}
		for _, f := range res.Files {
			rows++
			cell, err := excelize.CoordinatesToCellName(1, rows+1)
			if err != nil {
				return 0, err
			}
			row := exportRow(f)
			if err := book.SetSheetRow(exportSheet, cell, &row); err != nil {
				return 0, fmt.Errorf("запись строки %d: %w", rows+1, err)
			}
		}
		if !res.HasNextPage {
			break
		}
	}

	if err := book.SetColWidth(exportSheet, "A", "H", 20); err != nil {
		return 0, fmt.Errorf("ширина колонок: %w", err)
	}
	if err := book.SetPanes(exportSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return 0, fmt.Errorf("закрепление заголовка: %w", err)
	}

	if _, err := book.WriteTo(w); err != nil {
		return 0, fmt.Errorf("запись книги: %w", err)
	}
	return rows, nil
}

func exportRow(f model.FileSummary) []any {
	return []any{
		f.SerialNumber,
		f.FileNumber,
		f.FileName,
		f.Section,
		f.Owner,
		string(f.Status),
		f.CreatedAt.UTC().Format(time.RFC3339),
		f.FileID,
	}
}
