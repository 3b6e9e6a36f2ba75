package runtime

import "testing"

func TestFileSystemCreateReadWrite(t *testing.T) {
	fsys := NewFileSystem()
	h, err := fsys.Create("/a.txt")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fsys.Write(h, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := fsys.Read(h)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if err := fsys.Close(h); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFileSystemCreateExistingFails(t *testing.T) {
	fsys := NewFileSystem()
	if _, err := fsys.Create("/dup.txt"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := fsys.Create("/dup.txt"); err == nil {
		t.Fatalf("expected AlreadyExists on duplicate create")
	}
}

func TestCanonicalizeRejectsDotDot(t *testing.T) {
	fsys := NewFileSystem()
	if _, err := fsys.Canonicalize("/a/../b"); err == nil {
		t.Fatalf("expected InvalidPath for a path containing ..")
	}
}

func TestRestrictedRejectsEscape(t *testing.T) {
	base := NewFileSystem().Restricted("/sandbox")
	if _, err := base.Canonicalize("file.txt"); err != nil {
		t.Fatalf("expected relative path inside sandbox to canonicalize: %v", err)
	}
	if _, err := base.Canonicalize("/etc/passwd"); err == nil {
		t.Fatalf("expected absolute path to be rejected under a restricted handle")
	}
}

func TestReadDirSortedCaseFolded(t *testing.T) {
	fsys := NewFileSystem()
	for _, name := range []string{"/dir/Banana.txt", "/dir/apple.txt", "/dir/cherry.txt"} {
		if _, err := fsys.Create(name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	it, err := fsys.ReadDir("/dir")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	for {
		name, ok := fsys.Next(it)
		if !ok {
			break
		}
		names = append(names, name)
	}
	want := []string{"apple.txt", "Banana.txt", "cherry.txt"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
