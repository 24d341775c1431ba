// Пакет storetest — общий набор проверок контракта store.Store.
// Вызывается из тестов адаптеров (memstore, mongostore, pgstore), чтобы все
// реализации одинаково нормализовали ошибки и соблюдали порядок истории.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/domain/serial"
	"github.com/bigkaa/filetracker/internal/store"
)

// Factory создаёт пустое хранилище для одного подтеста.
type Factory func(t *testing.T) store.Store

// File собирает валидный файл с одной записью истории.
func File(id, number, sn string, createdAt time.Time) *model.File {
	createdAt = createdAt.UTC().Truncate(time.Millisecond)
	return &model.File{
		FileID:          id,
		FileNumber:      number,
		SerialNumber:    sn,
		FileName:        "Дело " + number,
		Description:     "описание " + number,
		Section:         "Канцелярия",
		Owner:           "sidorov",
		CurrentLocation: "Канцелярия",
		Status:          model.StatusActive,
		CreatedAt:       createdAt,
		History: []model.HistoryEntry{{
			Location:  "Канцелярия",
			Status:    model.StatusActive,
			Handler:   "sidorov",
			Section:   "Канцелярия",
			ToSection: "Канцелярия",
			Notes:     model.CreatedNote,
			Timestamp: createdAt,
		}},
	}
}

// Run выполняет все проверки контракта.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("UniqueViolations", func(t *testing.T) { testUniqueViolations(t, newStore(t)) })
	t.Run("UniqueFileNumberIndex", func(t *testing.T) { testUniqueFileNumberIndex(t, newStore(t)) })
	t.Run("LastSerialNumber", func(t *testing.T) { testLastSerialNumber(t, newStore(t)) })
	t.Run("AppendHistory", func(t *testing.T) { testAppendHistory(t, newStore(t)) })
	t.Run("ListAndCount", func(t *testing.T) { testListAndCount(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("RemoveDuplicates", func(t *testing.T) { testRemoveDuplicates(t, newStore(t)) })
	t.Run("CleanupIncomplete", func(t *testing.T) { testCleanupIncomplete(t, newStore(t)) })
}

func mustInsert(t *testing.T, s store.Store, f *model.File) {
	t.Helper()
	if err := s.Insert(context.Background(), f); err != nil {
		t.Fatalf("Insert(%s) ошибка: %v", f.FileID, err)
	}
}

func testInsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := File("id-1", "N-1", "SN2025000001", time.Now())
	mustInsert(t, s, f)

	got, err := s.GetByFileID(ctx, "id-1")
	if err != nil {
		t.Fatalf("GetByFileID() ошибка: %v", err)
	}
	if got.FileNumber != "N-1" || got.SerialNumber != "SN2025000001" || got.Description != f.Description {
		t.Errorf("прочитан не тот файл: %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Notes != model.CreatedNote {
		t.Errorf("история не сохранена: %+v", got.History)
	}
	if !got.CreatedAt.Equal(f.CreatedAt) {
		t.Errorf("CreatedAt = %v, ожидалось %v", got.CreatedAt, f.CreatedAt)
	}

	for _, term := range []string{"id-1", "N-1", "SN2025000001"} {
		if _, err := s.Lookup(ctx, term); err != nil {
			t.Errorf("Lookup(%q) ошибка: %v", term, err)
		}
	}
	if _, err := s.FindByFileNumber(ctx, "N-1"); err != nil {
		t.Errorf("FindByFileNumber() ошибка: %v", err)
	}
	if _, err := s.GetByFileID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := s.Lookup(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Lookup: ожидалась ErrNotFound, получено %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() ошибка: %v", err)
	}
}

func testUniqueViolations(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.EnsureIndexes(ctx, false); err != nil {
		t.Fatalf("EnsureIndexes() ошибка: %v", err)
	}
	mustInsert(t, s, File("id-1", "N-1", "SN2025000001", time.Now()))

	err := s.Insert(ctx, File("id-2", "N-2", "SN2025000001", time.Now()))
	if field, ok := store.UniqueViolationField(err); !ok || field != store.FieldSerialNumber {
		t.Errorf("ожидалось нарушение serialNumber, получено %v", err)
	}
	err = s.Insert(ctx, File("id-1", "N-3", "SN2025000003", time.Now()))
	if field, ok := store.UniqueViolationField(err); !ok || field != store.FieldFileID {
		t.Errorf("ожидалось нарушение fileId, получено %v", err)
	}
	// Без уникального индекса fileNumber дубликат сохраняется
	if err := s.Insert(ctx, File("id-4", "N-1", "SN2025000004", time.Now())); err != nil {
		t.Errorf("дубликат fileNumber без уникального индекса: %v", err)
	}
}

func testUniqueFileNumberIndex(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.EnsureIndexes(ctx, false); err != nil {
		t.Fatalf("EnsureIndexes(false) ошибка: %v", err)
	}
	if ok, err := s.HasUniqueFileNumberIndex(ctx); err != nil || ok {
		t.Fatalf("HasUniqueFileNumberIndex() = %v, %v; ожидалось false", ok, err)
	}
	if err := s.EnsureIndexes(ctx, true); err != nil {
		t.Fatalf("EnsureIndexes(true) ошибка: %v", err)
	}
	if ok, err := s.HasUniqueFileNumberIndex(ctx); err != nil || !ok {
		t.Fatalf("HasUniqueFileNumberIndex() = %v, %v; ожидалось true", ok, err)
	}
	// Повторный вызов идемпотентен
	if err := s.EnsureIndexes(ctx, true); err != nil {
		t.Fatalf("повторный EnsureIndexes(true) ошибка: %v", err)
	}

	mustInsert(t, s, File("id-1", "N-1", "SN2025000001", time.Now()))
	err := s.Insert(ctx, File("id-2", "N-1", "SN2025000002", time.Now()))
	if field, ok := store.UniqueViolationField(err); !ok || field != store.FieldFileNumber {
		t.Errorf("ожидалось нарушение fileNumber, получено %v", err)
	}
}

func testLastSerialNumber(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.LastSerialNumber(ctx, serial.Pattern(2025)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("пустое хранилище: ожидалась ErrNotFound, получено %v", err)
	}

	now := time.Now()
	mustInsert(t, s, File("a", "1", "SN2025000009", now))
	mustInsert(t, s, File("b", "2", "SN2025000010", now))
	mustInsert(t, s, File("c", "3", "SN20259999999901", now))
	mustInsert(t, s, File("d", "4", "SN2026000001", now))

	got, err := s.LastSerialNumber(ctx, serial.Pattern(2025))
	if err != nil {
		t.Fatalf("LastSerialNumber() ошибка: %v", err)
	}
	if got != "SN2025000010" {
		t.Errorf("LastSerialNumber() = %q, ожидалось SN2025000010", got)
	}
}

func testAppendHistory(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustInsert(t, s, File("id-1", "N-1", "SN2025000001", time.Now()))

	for i, loc := range []string{"Склад", "Кабинет 5"} {
		state := model.State{Status: model.StatusPending, CurrentLocation: loc, Section: "Юротдел", Owner: "petrov"}
		entry := model.HistoryEntry{
			Location: loc, Status: model.StatusPending, Handler: "petrov", Section: "Юротдел",
			FromSection: "Канцелярия", ToSection: "Юротдел",
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		}
		f, err := s.AppendHistory(ctx, "id-1", state, entry)
		if err != nil {
			t.Fatalf("AppendHistory #%d ошибка: %v", i+1, err)
		}
		if len(f.History) != i+2 {
			t.Fatalf("len(History) = %d, ожидалось %d", len(f.History), i+2)
		}
		last := f.History[len(f.History)-1]
		if last.Location != loc || f.CurrentLocation != loc {
			t.Errorf("последняя запись %q, текущее местоположение %q, ожидалось %q", last.Location, f.CurrentLocation, loc)
		}
		if last.FromSection != "Канцелярия" {
			t.Errorf("FromSection = %q", last.FromSection)
		}
	}

	f, _ := s.GetByFileID(ctx, "id-1")
	if f.History[0].Notes != model.CreatedNote {
		t.Error("порядок истории нарушен")
	}
	if f.Owner != "petrov" || f.Section != "Юротдел" {
		t.Errorf("владелец/отдел не обновлены: %q / %q", f.Owner, f.Section)
	}

	_, err := s.AppendHistory(ctx, "missing", model.State{Status: model.StatusActive}, model.HistoryEntry{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func testListAndCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	for i, n := range []string{"ALPHA-1", "ALPHA-2", "BETA-1", "BETA-2", "GAMMA-1"} {
		mustInsert(t, s, File("id-"+n, n, serial.Format(2025, i+1), base.Add(time.Duration(i)*time.Minute)))
	}

	page, err := s.List(ctx, store.ListParams{Limit: 2})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(page) != 2 || page[0].FileNumber != "GAMMA-1" || page[1].FileNumber != "BETA-2" {
		t.Errorf("первая страница: %+v", page)
	}

	page, _ = s.List(ctx, store.ListParams{Limit: 2, Offset: 4})
	if len(page) != 1 || page[0].FileNumber != "ALPHA-1" {
		t.Errorf("последняя страница: %+v", page)
	}

	n, err := s.Count(ctx, store.ListParams{})
	if err != nil || n != 5 {
		t.Errorf("Count() = %d, %v; ожидалось 5", n, err)
	}

	n, _ = s.Count(ctx, store.ListParams{Query: "beta"})
	if n != 2 {
		t.Errorf("Count(beta) = %d, ожидалось 2", n)
	}
	page, _ = s.List(ctx, store.ListParams{Query: "beta", Limit: 10})
	if len(page) != 2 {
		t.Errorf("List(beta) = %d записей, ожидалось 2", len(page))
	}

	// Спецсимволы трактуются буквально
	n, _ = s.Count(ctx, store.ListParams{Query: "A.*"})
	if n != 0 {
		t.Errorf("Count(A.*) = %d, ожидалось 0", n)
	}
}

func testSettings(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetSetting(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}

	def := model.DefaultSettings()[0]
	created, err := s.InsertSettingIfAbsent(ctx, def)
	if err != nil || !created {
		t.Fatalf("InsertSettingIfAbsent() = %v, %v", created, err)
	}
	created, err = s.InsertSettingIfAbsent(ctx, model.Setting{Key: def.Key, Value: false})
	if err != nil || created {
		t.Fatalf("повторный InsertSettingIfAbsent() = %v, %v", created, err)
	}

	if err := s.UpsertSetting(ctx, def.Key, false); err != nil {
		t.Fatalf("UpsertSetting() ошибка: %v", err)
	}
	if err := s.UpsertSetting(ctx, "banner", "Добро пожаловать"); err != nil {
		t.Fatalf("UpsertSetting() ошибка: %v", err)
	}

	got, err := s.GetSetting(ctx, def.Key)
	if err != nil {
		t.Fatalf("GetSetting() ошибка: %v", err)
	}
	if got.Value != false {
		t.Errorf("Value = %#v, ожидалось false", got.Value)
	}
	if got.Description != def.Description {
		t.Errorf("Description = %q, ожидалось сохранение описания", got.Description)
	}

	list, err := s.ListSettings(ctx)
	if err != nil {
		t.Fatalf("ListSettings() ошибка: %v", err)
	}
	if len(list) != 2 || list[0].Key != def.Key || list[1].Key != "banner" {
		t.Errorf("ListSettings() = %+v", list)
	}
}

func testRemoveDuplicates(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mustInsert(t, s, File("newer", "DUP", "SN2024000001", base.Add(time.Hour)))
	mustInsert(t, s, File("oldest", "DUP", "SN2024000002", base))
	mustInsert(t, s, File("single", "ONE", "SN2024000003", base))

	removed, err := s.RemoveDuplicateFileNumbers(ctx, 10)
	if err != nil {
		t.Fatalf("RemoveDuplicateFileNumbers() ошибка: %v", err)
	}
	if removed != 1 {
		t.Errorf("удалено %d, ожидалась 1", removed)
	}
	f, err := s.FindByFileNumber(ctx, "DUP")
	if err != nil || f.FileID != "oldest" {
		t.Errorf("должен остаться самый старый файл: %v, %v", f, err)
	}
	if err := s.EnsureIndexes(ctx, true); err != nil {
		t.Errorf("после дедупликации уникальный индекс должен создаваться: %v", err)
	}
}

func testCleanupIncomplete(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustInsert(t, s, File("ok", "N-1", "SN2025000001", time.Now()))
	mustInsert(t, s, File("no-number", "", "SN2025000002", time.Now()))

	deleted, err := s.CleanupIncomplete(ctx)
	if err != nil {
		t.Fatalf("CleanupIncomplete() ошибка: %v", err)
	}
	if deleted != 1 {
		t.Errorf("удалено %d, ожидалась 1", deleted)
	}
	if _, err := s.GetByFileID(ctx, "ok"); err != nil {
		t.Errorf("полная запись удалена: %v", err)
	}
}
