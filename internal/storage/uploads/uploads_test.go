package uploads

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestNewUploads(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		u, err := NewUploads(t.TempDir())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if u == nil {
			t.Error("expected Uploads instance, got nil")
		}
	})

	t.Run("empty folder path", func(t *testing.T) {
		u, err := NewUploads("")
		if err == nil {
			t.Error("expected error for empty path, got nil")
		}
		if u != nil {
			t.Error("expected nil Uploads for empty path")
		}
	})

	t.Run("nonexistent folder creation", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "media", "covers")

		if _, err := NewUploads(dir); err != nil {
			t.Fatalf("expected folder to be created, got error: %v", err)
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Error("folder was not created")
		}
	})
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	u, err := NewUploads(dir)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("cover bytes")

	t.Run("successful save", func(t *testing.T) {
		if err := u.SaveImage(data, "cover1.jpg"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got, err := os.ReadFile(filepath.Join(dir, "cover1.jpg"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Error("file content mismatch")
		}
	})

	t.Run("nested name", func(t *testing.T) {
		if err := u.SaveImage(data, "artwork/grids/12.png"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !u.Exists("artwork/grids/12.png") {
			t.Error("nested file not found")
		}
	})

	t.Run("existing file", func(t *testing.T) {
		if err := u.SaveImage(data, "cover1.jpg"); err != ErrFileExists {
			t.Errorf("expected ErrFileExists, got %v", err)
		}
	})

	t.Run("empty image", func(t *testing.T) {
		if err := u.SaveImage(nil, "empty.jpg"); err != ErrInvalidImage {
			t.Errorf("expected ErrInvalidImage, got %v", err)
		}
	})

	t.Run("path traversal", func(t *testing.T) {
		for _, name := range []string{"", "../escape.jpg", "a/../../escape.jpg", "/etc/passwd", ".."} {
			if err := u.SaveImage(data, name); err != ErrInvalidFileName {
				t.Errorf("%q: expected ErrInvalidFileName, got %v", name, err)
			}
		}
	})
}

func TestWriteImage(t *testing.T) {
	dir := t.TempDir()
	u, err := NewUploads(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := u.WriteImage([]byte("v1"), "artwork/heroes/3.png"); err != nil {
		t.Fatal(err)
	}
	if err := u.WriteImage([]byte("v2"), "artwork/heroes/3.png"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "artwork", "heroes", "3.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("expected v2, got %s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "artwork", "heroes", "3.png.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestDeleteImage(t *testing.T) {
	u, err := NewUploads(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := u.SaveImage([]byte("x"), "gone.jpg"); err != nil {
		t.Fatal(err)
	}

	if err := u.DeleteImage("gone.jpg"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if u.Exists("gone.jpg") {
		t.Error("file still exists")
	}
	if err := u.DeleteImage("gone.jpg"); err != ErrFileNotExists {
		t.Errorf("expected ErrFileNotExists, got %v", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	u, err := NewUploads(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := u.WriteImage([]byte("same"), "shared.png"); err != nil {
				t.Errorf("concurrent write failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if !u.Exists("shared.png") {
		t.Error("file missing after concurrent writes")
	}
}
