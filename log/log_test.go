package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("VOX_LOG_PATH", "/tmp/vox-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/vox-env-log" {
		t.Errorf("got %q, want /tmp/vox-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("VOX_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFile(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(tmp, "diagnostics_log.txt")); err != nil {
		t.Errorf("diagnostics_log.txt not created: %v", err)
	}
}

func readDiag(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestPhaseAndFailure(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Phase("uploading", "failed")
	Failure("contract_violation", errors.New("got object"))

	out := readDiag(t, tmp)
	for _, want := range []string{"from=uploading", "to=failed", "kind=contract_violation", "got object"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q, got: %q", want, out)
		}
	}
}

func TestUpload(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Upload(UploadData{Format: "wav", SizeKB: 12.5, AudioS: 1.5, ElapsedMs: 210, Places: 3, OK: true})

	out := readDiag(t, tmp)
	for _, want := range []string{"upload", "format=wav", "places=3", "ok=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q, got: %q", want, out)
		}
	}
}

func TestNotReadyIsSilent(t *testing.T) {
	tmp := setupLogDir(t)

	Info("dropped")
	Phase("idle", "recording")

	if _, err := os.Stat(filepath.Join(tmp, "diagnostics_log.txt")); !os.IsNotExist(err) {
		t.Errorf("expected no log file before Init, stat err = %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
