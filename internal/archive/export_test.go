package archive_test

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliercoder/go-cpio"

	"github.com/lledit/lledit/internal/archive"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/dstest"
)

func TestExportPacksDirectoryTree(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("alpha"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("beta"), 0644); err != nil {
		t.Fatal(err)
	}

	sess := dstest.NewSession(t)
	root := dsid.Dsid{dsid.Name("FileSystem")}
	for _, part := range filepathParts(src) {
		root = root.Append(dsid.Name(part))
	}

	out := filepath.Join(t.TempDir(), "snapshot.cpio.gz")
	if err := archive.Export(context.Background(), sess, root, out); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer gz.Close()

	names := map[string]string{}
	cr := cpio.NewReader(gz)
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(cr)
		if err != nil {
			t.Fatal(err)
		}
		names[hdr.Name] = string(body)
	}

	if got := names["a.txt"]; got != "alpha" {
		t.Errorf("a.txt contents = %q, want %q", got, "alpha")
	}
	if got := names["sub/b.txt"]; got != "beta" {
		t.Errorf("sub/b.txt contents = %q, want %q", got, "beta")
	}
}

func filepathParts(path string) []string {
	var parts []string
	cur := ""
	for _, c := range path {
		if c == filepath.Separator {
			if cur != "" {
				parts = append(parts, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}
