package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("SOLE_TEST_STR", "  value  ")
	if got := EnvString("SOLE_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q want value", got)
	}
	if got := EnvString("SOLE_TEST_STR_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default=%q want def", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SOLE_TEST_BOOL", "true")
	if !EnvBool("SOLE_TEST_BOOL", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("SOLE_TEST_BOOL", "garbage")
	if EnvBool("SOLE_TEST_BOOL", false) {
		t.Fatalf("invalid value must fall back to default")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SOLE_TEST_INT", "42")
	if got := EnvInt("SOLE_TEST_INT", 7); got != 42 {
		t.Fatalf("EnvInt=%d want 42", got)
	}
	t.Setenv("SOLE_TEST_INT", "-3")
	if got := EnvInt("SOLE_TEST_INT", 7); got != 7 {
		t.Fatalf("non-positive must fall back, got %d", got)
	}
}

func TestEnvInt32(t *testing.T) {
	t.Setenv("SOLE_TEST_INT32", "0")
	if got := EnvInt32("SOLE_TEST_INT32", 5); got != 0 {
		t.Fatalf("zero is valid for int32, got %d", got)
	}
	t.Setenv("SOLE_TEST_INT32", "-1")
	if got := EnvInt32("SOLE_TEST_INT32", 5); got != 5 {
		t.Fatalf("negative must fall back, got %d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("SOLE_TEST_DUR", "90s")
	if got := EnvDuration("SOLE_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v want 90s", got)
	}
	t.Setenv("SOLE_TEST_DUR", "-1m")
	if got := EnvDuration("SOLE_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("negative must fall back, got %v", got)
	}
}

func TestEnvCSV(t *testing.T) {
	t.Setenv("SOLE_TEST_CSV", "a, b ,,c")
	got := EnvCSV("SOLE_TEST_CSV", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("EnvCSV=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EnvCSV=%v want %v", got, want)
		}
	}

	if got := EnvCSV("SOLE_TEST_CSV_MISSING", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("default not honored: %v", got)
	}
}
