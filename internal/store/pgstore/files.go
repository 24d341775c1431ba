// files.go — операции с таблицей files.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/store"
)

// fileColumns — колонки для SELECT полного файла.
const fileColumns = `file_id, file_number, COALESCE(serial_number, ''), file_name, description,
	section, owner, current_location, status, created_at, history`

// summaryColumns — колонки проекции для списков.
const summaryColumns = `file_id, file_name, file_number, COALESCE(serial_number, ''),
	status, section, owner, created_at`

// searchPredicate — условие полнотекстового поиска по ILIKE.
const searchPredicate = `(file_name ILIKE $1 OR file_number ILIKE $1 OR serial_number ILIKE $1
	OR owner ILIKE $1 OR section ILIKE $1 OR description ILIKE $1)`

// Insert сохраняет новый файл.
func (s *Store) Insert(ctx context.Context, f *model.File) error {
	history, err := json.Marshal(historyOrEmpty(f.History))
	if err != nil {
		return fmt.Errorf("сериализация истории: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO files (file_id, file_number, serial_number, file_name, description,
			section, owner, current_location, status, created_at, history)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)`,
		f.FileID, f.FileNumber, f.SerialNumber, f.FileName, f.Description,
		f.Section, f.Owner, f.CurrentLocation, string(f.Status), f.CreatedAt, history,
	)
	return classify("insert file", err)
}

// GetByFileID возвращает файл по fileId.
func (s *Store) GetByFileID(ctx context.Context, fileID string) (*model.File, error) {
	row := s.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE file_id = $1`, fileID)
	return scanFile("get file", row)
}

// FindByFileNumber возвращает самый старый файл с указанным fileNumber.
func (s *Store) FindByFileNumber(ctx context.Context, fileNumber string) (*model.File, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE file_number = $1 ORDER BY created_at, id LIMIT 1`,
		fileNumber,
	)
	return scanFile("find by file number", row)
}

// Lookup ищет по fileId, fileNumber или serialNumber.
func (s *Store) Lookup(ctx context.Context, term string) (*model.File, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files
		WHERE file_id = $1 OR file_number = $1 OR serial_number = $1
		ORDER BY created_at, id LIMIT 1`,
		term,
	)
	return scanFile("lookup file", row)
}

// List возвращает проекции файлов, новые первыми.
func (s *Store) List(ctx context.Context, params store.ListParams) ([]model.FileSummary, error) {
	var (
		where string
		args  []any
	)
	if q := strings.TrimSpace(params.Query); q != "" {
		where = "WHERE " + searchPredicate
		args = append(args, likePattern(q))
	}

	limit := "ALL"
	if params.Limit > 0 {
		limit = fmt.Sprintf("%d", params.Limit)
	}
	query := fmt.Sprintf(
		`SELECT %s FROM files %s ORDER BY created_at DESC, id DESC LIMIT %s OFFSET %d`,
		summaryColumns, where, limit, max(params.Offset, 0),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list files", err)
	}
	defer rows.Close()

	var result []model.FileSummary
	for rows.Next() {
		var (
			sum    model.FileSummary
			status string
		)
		if err := rows.Scan(&sum.FileID, &sum.FileName, &sum.FileNumber, &sum.SerialNumber,
			&status, &sum.Section, &sum.Owner, &sum.CreatedAt); err != nil {
			return nil, classify("scan file summary", err)
		}
		sum.Status = model.Status(status)
		sum.CreatedAt = sum.CreatedAt.UTC()
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list files", err)
	}
	return result, nil
}

// Count возвращает количество файлов, подходящих под запрос.
func (s *Store) Count(ctx context.Context, params store.ListParams) (int64, error) {
	var (
		where string
		args  []any
	)
	if q := strings.TrimSpace(params.Query); q != "" {
		where = "WHERE " + searchPredicate
		args = append(args, likePattern(q))
	}

	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM files `+where, args...).Scan(&n)
	if err != nil {
		return 0, classify("count files", err)
	}
	return n, nil
}

// LastSerialNumber возвращает наибольший номер, совпадающий с регулярным выражением.
// Сравнение в collation "C" совпадает с лексикографическим порядком.
func (s *Store) LastSerialNumber(ctx context.Context, pattern string) (string, error) {
	var sn string
	err := s.db.QueryRow(ctx,
		`SELECT serial_number FROM files
		WHERE serial_number ~ $1
		ORDER BY serial_number COLLATE "C" DESC LIMIT 1`,
		pattern,
	).Scan(&sn)
	if err != nil {
		return "", classify("last serial number", err)
	}
	return sn, nil
}

// AppendHistory одним UPDATE применяет состояние и добавляет запись в конец JSONB-массива.
func (s *Store) AppendHistory(ctx context.Context, fileID string, state model.State, entry model.HistoryEntry) (*model.File, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("сериализация записи истории: %w", err)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE files SET
			status = $2,
			current_location = $3,
			section = $4,
			owner = $5,
			history = history || jsonb_build_array($6::jsonb)
		WHERE file_id = $1
		RETURNING `+fileColumns,
		fileID, string(state.Status), state.CurrentLocation, state.Section, state.Owner, raw,
	)
	return scanFile("append history", row)
}

func scanFile(op string, row pgx.Row) (*model.File, error) {
	var (
		f       model.File
		status  string
		history []byte
	)
	err := row.Scan(&f.FileID, &f.FileNumber, &f.SerialNumber, &f.FileName, &f.Description,
		&f.Section, &f.Owner, &f.CurrentLocation, &status, &f.CreatedAt, &history)
	if err != nil {
		return nil, classify(op, err)
	}
	f.Status = model.Status(status)
	f.CreatedAt = f.CreatedAt.UTC()
	if err := json.Unmarshal(history, &f.History); err != nil {
		return nil, fmt.Errorf("%s: разбор истории файла %s: %w", op, f.FileID, err)
	}
	return &f, nil
}

func historyOrEmpty(h []model.HistoryEntry) []model.HistoryEntry {
	if h == nil {
		return []model.HistoryEntry{}
	}
	return h
}

// likePattern экранирует спецсимволы LIKE и оборачивает запрос в %...%.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
