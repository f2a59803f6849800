package sevenzip

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/go7zip/sevenzip/blockgraph"
	"github.com/go7zip/sevenzip/coder"
)

func buildArchive(t *testing.T, opts ...WriterOption) []byte {
	t.Helper()

	var out bytes.Buffer
	wr := NewWriter(&out, opts...)

	entries := []*PendingEntry{
		{Name: "hello.txt", ModifiedAt: time.Unix(1700000000, 0), Content: bytes.NewReader([]byte("hello, 7z world"))},
		{Name: "dir", IsDir: true},
		{Name: "empty.bin", Content: bytes.NewReader(nil)},
		{Name: "numbers.bin", ModifiedAt: time.Unix(1700000001, 0), Content: bytes.NewReader(bytes.Repeat([]byte{0, 1, 2, 3}, 256))},
	}
	if err := wr.PushArchiveEntries(entries); err != nil {
		t.Fatalf("PushArchiveEntries: %v", err)
	}
	if err := wr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	return out.Bytes()
}

func copyMethodOption() WriterOption {
	return WithContentMethods([]blockgraph.ChainStage{{Method: coder.Copy}})
}

func TestWriterReaderRoundTripSolid(t *testing.T) {
	data := buildArchive(t, copyMethodOption())

	sz, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	entries := sz.Entries()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	want := map[string]string{
		"hello.txt":   "hello, 7z world",
		"empty.bin":   "",
		"numbers.bin": string(bytes.Repeat([]byte{0, 1, 2, 3}, 256)),
	}

	seen := map[string]bool{}
	err = sz.ForEachEntry(func(e *Entry, r io.Reader) error {
		seen[e.Name] = true
		if e.Name == "dir" {
			if !e.IsDir {
				t.Errorf("%s: IsDir = false, want true", e.Name)
			}
			if r != nil {
				t.Errorf("%s: reader should be nil for a directory", e.Name)
			}
			return nil
		}

		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if want[e.Name] != string(content) {
			t.Errorf("%s: content = %q, want %q", e.Name, content, want[e.Name])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachEntry: %v", err)
	}

	for name := range want {
		if !seen[name] {
			t.Errorf("%s was never visited", name)
		}
	}
}

func TestWriterReaderReadFile(t *testing.T) {
	data := buildArchive(t, copyMethodOption())

	sz, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	r, err := sz.ReadFile("numbers.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	want := bytes.Repeat([]byte{0, 1, 2, 3}, 256)
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadFile(numbers.bin) length = %d, want %d", len(got), len(want))
	}

	if _, err := sz.ReadFile("does-not-exist"); err == nil {
		t.Fatal("ReadFile of a missing entry should fail")
	} else if e, ok := err.(*Error); !ok || e.Kind != KindFileNotFound {
		t.Fatalf("err = %v, want KindFileNotFound", err)
	}
}

func TestWriterReaderNonSolid(t *testing.T) {
	data := buildArchive(t, copyMethodOption(), WithSolid(false))

	sz, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	r, err := sz.ReadFile("hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello, 7z world" {
		t.Fatalf("content = %q", got)
	}
}

func TestEmptyArchive(t *testing.T) {
	var out bytes.Buffer
	wr := NewWriter(&out)
	if err := wr.Close(); err != nil {
		t.Fatal(err)
	}

	sz, err := NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("NewReader on empty archive: %v", err)
	}
	if len(sz.Entries()) != 0 {
		t.Fatalf("got %d entries, want 0", len(sz.Entries()))
	}
}

func TestFileCompressionMethods(t *testing.T) {
	data := buildArchive(t, WithContentMethods([]blockgraph.ChainStage{
		{Method: coder.Delta, Config: coder.CoderConfig{DeltaDistance: 1}},
		{Method: coder.Copy},
	}))

	sz, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}

	methods, err := sz.FileCompressionMethods("hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 2 || methods[0] != coder.Delta || methods[1] != coder.Copy {
		t.Fatalf("methods = %v, want [Delta, Copy]", methods)
	}
}
