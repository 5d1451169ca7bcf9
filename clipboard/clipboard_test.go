package clipboard

import "testing"

func TestCopyRead(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard backend")
	}
	want := "https://maps.example/?q=cafe"
	if err := Copy(want); err != nil {
		t.Skipf("clipboard not writable here: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Skipf("clipboard not readable here: %v", err)
	}
	if got != want {
		t.Errorf("Read() = %q, want %q", got, want)
	}
}
