package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "uc1:31822021576848/v1", want: "uc1+31822021576848=v1.zip"},
		{id: "mdp.39015012345678", want: "mdp.39015012345678.zip"},
		{id: "ark:/13960/t0ht2w18h", want: "ark+=13960=t0ht2w18h.zip"},
		{id: "", want: ".zip"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := FileName(tt.id); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestCheckDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CheckDir(dir); err != nil {
		t.Errorf("CheckDir(existing) = %v", err)
	}

	err := CheckDir(filepath.Join(dir, "missing"))
	if !errors.Is(err, ErrNotFoundLocal) {
		t.Errorf("CheckDir(missing) = %v, want ErrNotFoundLocal", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("CheckDir(missing) should also match os.ErrNotExist")
	}

	if err := CheckDir(file); !errors.Is(err, ErrNotFoundLocal) {
		t.Errorf("CheckDir(file) = %v, want ErrNotFoundLocal", err)
	}
}

func TestOpenIDFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ids.txt")
	if err := os.WriteFile(path, []byte("a\nb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenIDFile(path)
	if err != nil {
		t.Fatalf("OpenIDFile() error = %v", err)
	}
	f.Close()

	if _, err := OpenIDFile(filepath.Join(dir, "nope.txt")); !errors.Is(err, ErrNotFoundLocal) {
		t.Errorf("OpenIDFile(missing) = %v, want ErrNotFoundLocal", err)
	}
}
