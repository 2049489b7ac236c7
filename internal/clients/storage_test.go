package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGetURLDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	// empty prefix falls back to /documents
	c, err := NewLocalStorage(tmpDir, "", "http://condo.local:8060")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}
	got := c.GetURL("receipt_202401-0001.xlsx")
	want := "http://condo.local:8060/documents/receipt_202401-0001.xlsx"
	if got != want {
		t.Fatalf("expected %s; got %s", want, got)
	}

	// without base url the path is server-relative
	c2, _ := NewLocalStorage(tmpDir, "", "")
	if got2 := c2.GetURL("delinquents.xlsx"); got2 != "/documents/delinquents.xlsx" {
		t.Fatalf("expected /documents/delinquents.xlsx; got %s", got2)
	}
}

func TestSaveAndServeDocument(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewLocalStorage(tmpDir, "", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	content := []byte("workbook bytes")
	saved, err := c.Save(context.Background(), "receipts_20240301_120000.xlsx", content)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// mirror the public document route: resolve under BaseDir, strip the
	// random prefix for the download name
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file := filepath.Base(strings.TrimPrefix(r.URL.Path, "/documents/"))
		path := filepath.Join(c.BaseDir, file)
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		if idx := strings.IndexByte(file, '_'); idx >= 0 {
			file = file[idx+1:]
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+file+"\"")
		http.ServeFile(w, r, path)
	})

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := http.Get(ts.URL + c.GetURL(saved))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bad status: %d", resp.StatusCode)
	}
	cd := resp.Header.Get("Content-Disposition")
	if !strings.Contains(cd, "receipts_20240301_120000.xlsx") {
		t.Fatalf("expected the original document name in Content-Disposition; got %s", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(content) {
		t.Fatalf("content mismatch: %s", string(body))
	}
}

func TestCleanupOlderThan(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewLocalStorage(tmpDir, "", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	old, err := c.Save(context.Background(), "receipts_old.xlsx", []byte("stale"))
	if err != nil {
		t.Fatalf("save old: %v", err)
	}
	fresh, err := c.Save(context.Background(), "receipts_new.xlsx", []byte("fresh"))
	if err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	stale := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(filepath.Join(c.BaseDir, old), stale, stale); err != nil {
		t.Fatalf("age file: %v", err)
	}

	if err := c.CleanupOlderThan(48 * time.Hour); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := os.Stat(filepath.Join(c.BaseDir, old)); !os.IsNotExist(err) {
		t.Fatal("expired document must be removed")
	}
	if _, err := os.Stat(filepath.Join(c.BaseDir, fresh)); err != nil {
		t.Fatalf("recent document must survive: %v", err)
	}
}
