// maintenance.go — служебные операции: индексы, дедупликация, очистка.
// Базовые индексы создаются миграцией; здесь управляется только
// уникальный индекс file_number, который нельзя создать при наличии дубликатов.
package pgstore

import (
	"context"
	"log/slog"
)

// EnsureIndexes создаёт уникальный индекс file_number, если uniqueFileNumber.
// Остальные индексы поддерживаются миграциями.
func (s *Store) EnsureIndexes(ctx context.Context, uniqueFileNumber bool) error {
	if !uniqueFileNumber {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS `+indexUniqueFileNumber+` ON files (file_number)`)
	if err != nil {
		return classify("create unique file_number index", err)
	}
	s.logger.Info("Уникальный индекс file_number создан")
	return nil
}

// HasUniqueFileNumberIndex проверяет наличие уникального индекса по одной колонке file_number.
func (s *Store) HasUniqueFileNumberIndex(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM pg_index i
			JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
			WHERE i.indrelid = 'files'::regclass
				AND i.indisunique
				AND i.indnatts = 1
				AND a.attname = 'file_number'
		)`,
	).Scan(&exists)
	if err != nil {
		return false, classify("check unique file_number index", err)
	}
	return exists, nil
}

// RemoveDuplicateFileNumbers удаляет дубликаты file_number, оставляя самую старую запись,
// не более чем в maxGroups группах (maxGroups <= 0 — без ограничения).
func (s *Store) RemoveDuplicateFileNumbers(ctx context.Context, maxGroups int) (int, error) {
	var limit any
	if maxGroups > 0 {
		limit = int64(maxGroups)
	}

	tag, err := s.db.Exec(ctx,
		`WITH groups AS (
			SELECT file_number FROM files
			GROUP BY file_number
			HAVING COUNT(*) > 1
			ORDER BY file_number
			LIMIT $1::bigint
		), ranked AS (
			SELECT f.id, ROW_NUMBER() OVER (PARTITION BY f.file_number ORDER BY f.created_at, f.id) AS rn
			FROM files f
			JOIN groups g ON g.file_number = f.file_number
		)
		DELETE FROM files WHERE id IN (SELECT id FROM ranked WHERE rn > 1)`,
		limit,
	)
	if err != nil {
		return 0, classify("remove duplicate file numbers", err)
	}

	removed := int(tag.RowsAffected())
	if removed > 0 {
		s.logger.Warn("Удалены дубликаты file_number", slog.Int("removed", removed))
	}
	return removed, nil
}

// CleanupIncomplete удаляет записи без file_number или serial_number.
func (s *Store) CleanupIncomplete(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM files
		WHERE file_number IS NULL OR file_number = ''
			OR serial_number IS NULL OR serial_number = ''`)
	if err != nil {
		return 0, classify("cleanup incomplete files", err)
	}
	return tag.RowsAffected(), nil
}
