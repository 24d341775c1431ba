package model

import "time"

// SettingAllowQRStatusChange — разрешено ли менять статус файла по QR-ссылке.
const SettingAllowQRStatusChange = "allowQRStatusChange"

// Setting — запись key/value хранилища настроек.
// Value хранит bool или string (значения "true"/"false" из форм приводятся к bool).
type Setting struct {
	Key         string    `json:"key" bson:"key"`
	Value       any       `json:"value" bson:"value"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DefaultSettings — настройки, создаваемые при первом запуске, если их нет.
func DefaultSettings() []Setting {
	return []Setting{
		{
			Key:         SettingAllowQRStatusChange,
			Value:       true,
			Description: "Allow users who scan QR codes to change file status",
		},
	}
}

// ParseSettingValue приводит строковое значение из формы к типу настройки:
// "true"/"false" — bool, остальное — строка как есть.
func ParseSettingValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	default:
		return raw
	}
}

// AsBool интерпретирует значение настройки как bool.
// Для неизвестных типов возвращает def.
func AsBool(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch b {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return def
}
