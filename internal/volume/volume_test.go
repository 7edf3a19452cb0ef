package volume

import (
	"os"
	"path/filepath"
	"testing"

	serrors "github.com/hbschr/snapshotbackup/errors"
)

func TestPathJoin(t *testing.T) {
	v, err := New("/foo/bar")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name    string
		sub     string
		want    string
		wantErr bool
	}{
		{"relative", "baz", "/foo/bar/baz", false},
		{"absolute inside", "/foo/bar/baz", "/foo/bar/baz", false},
		{"absolute outside", "/elsewhere/baz", "", true},
		{"relative escape normalizes back in", "../bar/baz", "/foo/bar/baz", false},
		{"relative escape stays out", "../elsewhere/baz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.pathJoin(tt.sub)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pathJoin(%q) error = %v, wantErr %v", tt.sub, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("pathJoin(%q) = %q, want %q", tt.sub, got, tt.want)
			}
			if tt.wantErr && err != nil && !serrors.IsKind(err, serrors.ErrInternal) {
				t.Errorf("pathJoin(%q) kind = %v, want ErrInternal", tt.sub, err)
			}
		})
	}
}

func TestAssurePath_NotFound(t *testing.T) {
	dir := t.TempDir()
	v, _ := New(filepath.Join(dir, "nope"))
	err := v.AssurePath()
	if !serrors.IsKind(err, serrors.ErrBackupDirNotFound) {
		t.Errorf("AssurePath() kind = %v, want ErrBackupDirNotFound", err)
	}
}

func TestAssurePath_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	v, _ := New(file)
	err := v.AssurePath()
	if !serrors.IsKind(err, serrors.ErrBackupDir) {
		t.Errorf("AssurePath() kind = %v, want ErrBackupDir", err)
	}
}

func TestAssureWritable(t *testing.T) {
	dir := t.TempDir()
	v, _ := New(dir)
	if err := v.AssureWritable(); err != nil {
		t.Errorf("AssureWritable() = %v, want nil", err)
	}
}

func TestSetup_Idempotent(t *testing.T) {
	dir := t.TempDir()
	v, _ := New(filepath.Join(dir, "nested", "root"))
	if err := v.Setup(); err != nil {
		t.Fatalf("Setup() = %v, want nil", err)
	}
	if err := v.Setup(); err != nil {
		t.Fatalf("second Setup() = %v, want nil", err)
	}
}
