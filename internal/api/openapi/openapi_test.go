package openapi

import "testing"

func TestLoad(t *testing.T) {
	doc, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	for _, path := range []string{"/health", "/files", "/file/{fileId}", "/file/{fileId}/update", "/search", "/settings", "/settings/update"} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("в контракте нет пути %s", path)
		}
	}
}
