// Пакет serial — чистая арифметика серийных номеров файлов.
// Формат: SN<год><6-значный номер с ведущими нулями>, например SN2025000001.
// Пакет не обращается к хранилищу: запрос максимального номера выполняет
// сервисный слой, здесь — только разбор, вычисление кандидата и политика повторов.
package serial

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Width — количество цифр порядкового номера.
const Width = 6

// MaxSequence — максимальный порядковый номер в пределах года.
const MaxSequence = 999999

// ErrExhausted — кандидат не помещается в 6 цифр.
var ErrExhausted = errors.New("порядковые номера за год исчерпаны")

// Prefix возвращает префикс серийных номеров года: SN<год>.
func Prefix(year int) string {
	return "SN" + strconv.Itoa(year)
}

// Format собирает серийный номер из года и порядкового номера.
func Format(year, seq int) string {
	return fmt.Sprintf("%s%0*d", Prefix(year), Width, seq)
}

// Pattern возвращает регулярное выражение канонических номеров года.
// Резервные (timestamp) номера длиннее и под шаблон не попадают,
// поэтому не сдвигают последовательность.
func Pattern(year int) string {
	return fmt.Sprintf(`^%s[0-9]{%d}$`, Prefix(year), Width)
}

// ParseSequence извлекает порядковый номер из серийного номера года.
func ParseSequence(year int, sn string) (int, error) {
	prefix := Prefix(year)
	if !strings.HasPrefix(sn, prefix) {
		return 0, fmt.Errorf("номер %q не относится к году %d", sn, year)
	}
	suffix := strings.TrimPrefix(sn, prefix)
	if len(suffix) != Width {
		return 0, fmt.Errorf("номер %q: ожидалось %d цифр после префикса", sn, Width)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("номер %q: некорректный суффикс", sn)
	}
	return n, nil
}

// ComputeCandidate вычисляет следующий порядковый номер.
// last — последний занятый номер (0, если номеров за год нет),
// attempt — номер попытки (0 для первой), позволяет получить другого
// кандидата после конфликта без повторного запроса максимума.
func ComputeCandidate(last, attempt int) (int, error) {
	if last < 0 {
		last = 0
	}
	if attempt < 0 {
		attempt = 0
	}
	next := last + 1 + attempt
	if next > MaxSequence {
		return 0, fmt.Errorf("%w: кандидат %d", ErrExhausted, next)
	}
	return next, nil
}

// Fallback формирует резервный номер, когда хранилище недоступно:
// младшие 6 цифр Unix-времени в миллисекундах и 2-значный случайный суффикс.
// Доступность важнее строгой последовательности.
func Fallback(year int, now time.Time, rnd int) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > Width {
		ms = ms[len(ms)-Width:]
	}
	return fmt.Sprintf("%s%s%02d", Prefix(year), ms, rnd%100)
}

// RetryPolicy — политика повторов при конфликте уникальности серийного номера.
type RetryPolicy struct {
	// MaxAttempts — максимальное число попыток сохранения (включая первую)
	MaxAttempts int
	// Backoff — базовая пауза; перед попыткой n ждём n*Backoff
	Backoff time.Duration
}

// DefaultRetryPolicy — 3 попытки с паузой 50ms, 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 50 * time.Millisecond}
}

// Normalize подставляет значения по умолчанию вместо некорректных.
func (p RetryPolicy) Normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Delay возвращает паузу перед попыткой attempt (0 — без паузы).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(attempt) * p.Backoff
}
