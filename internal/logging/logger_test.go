package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readCategoryLog(t *testing.T, ws string, cat Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".agentic", "logs", date+"_"+string(cat)+".log"))
	if err != nil {
		t.Fatalf("read %s log: %v", cat, err)
	}
	return string(data)
}

func TestAllCategoriesLog(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	for _, cat := range AllCategories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	for _, cat := range AllCategories {
		if got := readCategoryLog(t, ws, cat); !strings.Contains(got, "hello from "+string(cat)) {
			t.Errorf("category %s log missing message: %q", cat, got)
		}
	}
}

func TestDebugModeOffWritesNothing(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	API("should not be written")
	if IsDebugMode() {
		t.Error("debug mode should be off")
	}
	if _, err := os.Stat(filepath.Join(ws, ".agentic", "logs")); !os.IsNotExist(err) {
		t.Errorf("logs dir should not exist, stat err = %v", err)
	}
}

func TestCategoryFilter(t *testing.T) {
	ws := t.TempDir()
	err := Initialize(ws, Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"api": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryAPI) {
		t.Error("api should be disabled")
	}
	if !IsCategoryEnabled(CategoryGeneration) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	GenerationDebug("quiet")
	GenerationWarn("loud")
	CloseAll()

	got := readCategoryLog(t, ws, CategoryGeneration)
	if strings.Contains(got, "quiet") {
		t.Errorf("debug line written at warn level: %q", got)
	}
	if !strings.Contains(got, "loud") {
		t.Errorf("warn line missing: %q", got)
	}
}

func TestConcurrentGet(t *testing.T) {
	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: true}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Get(CategoryStore).Info("writer %d", i)
		}(i)
	}
	wg.Wait()

	if Get(CategoryStore) != Get(CategoryStore) {
		t.Error("Get should return the cached logger")
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize("", Options{}); err == nil {
		t.Error("expected error for empty workspace")
	}
}
