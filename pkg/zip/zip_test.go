package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
)

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Save(context.Background(), "yingying_gen_a.png", []byte("first")); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := w.Save(context.Background(), "yingying_gen_b.png", []byte("second")); err != nil {
		t.Fatalf("save b: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data := buf.Bytes()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	want := map[string]string{"yingying_gen_a.png": "first", "yingying_gen_b.png": "second"}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if string(body) != want[f.Name] {
			t.Fatalf("%s = %q, want %q", f.Name, body, want[f.Name])
		}
	}
}

func TestWriterRejectsDuplicates(t *testing.T) {
	w := NewWriter(io.Discard)
	if err := w.Save(context.Background(), "a.png", []byte("x")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := w.Save(context.Background(), "a.png", []byte("y")); err == nil {
		t.Fatal("expected duplicate error")
	}
	if w.Len() != 1 {
		t.Fatalf("Len = %d", w.Len())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
