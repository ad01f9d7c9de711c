package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plotledger/internal/infra/persistence/sqlite"
	"plotledger/pkg/domain"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PLOTLEDGER_STORAGE_DRIVER", "sqlite")
	t.Setenv("PLOTLEDGER_SQLITE_PATH", filepath.Join(dir, "ledger.db"))
	t.Setenv("PLOTLEDGER_BLOB_DRIVER", "fs")
	t.Setenv("PLOTLEDGER_BLOB_FS_ROOT", filepath.Join(dir, "content"))
	t.Setenv("PLOTLEDGER_MAINTAINER", "admin")
	t.Setenv("PLOTLEDGER_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestCLIGenesisPurchaseAndInspect(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "", "genesis", "--caller", "admin", "--rect", "0,0,250,250", "--price", "20000")
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if rec := decode[domain.OwnershipRecord](t, out); rec.ID != 0 || rec.Owner != "admin" || rec.Rect.W != 250 {
		t.Fatalf("unexpected genesis record %+v", rec)
	}

	req := `{"target":{"x":10,"y":10,"w":5,"h":5},"tiling":[{"rect":{"x":10,"y":10,"w":5,"h":5},"record_id":0}],"payment":500000,"buyer":"alice","initial_price":7}`
	out, err = runCLI(t, req, "purchase")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	receipt := decode[struct {
		RecordID uint64 `json:"record_id"`
		Total    uint64 `json:"total"`
	}](t, out)
	if receipt.RecordID != 1 || receipt.Total != 500000 {
		t.Fatalf("unexpected receipt %s", out)
	}

	out, err = runCLI(t, "", "record", "get", "0")
	if err != nil {
		t.Fatalf("record get: %v", err)
	}
	view := decode[recordView](t, out)
	if len(view.Holes) != 1 || view.Holes[0] != 1 || view.Price != 20000 {
		t.Fatalf("unexpected record view %+v", view)
	}

	out, err = runCLI(t, "", "record", "count")
	if err != nil {
		t.Fatalf("record count: %v", err)
	}
	if got := decode[map[string]uint64](t, out)["count"]; got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}

	out, err = runCLI(t, "", "price", "get", "1")
	if err != nil {
		t.Fatalf("price get: %v", err)
	}
	if got := decode[map[string]uint64](t, out)["price"]; got != 7 {
		t.Fatalf("expected initial price 7, got %d", got)
	}

	if _, err := runCLI(t, "", "price", "set", "1", "9", "--caller", "mallory"); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	out, err = runCLI(t, "", "withdraw", "proceeds", "--owner", "admin")
	if err != nil {
		t.Fatalf("withdraw proceeds: %v", err)
	}
	if !strings.Contains(out, `"amount": 500000`) {
		t.Fatalf("unexpected withdrawal output %s", out)
	}
}

func TestCLIPurchaseFromFileRejectsHoleConflict(t *testing.T) {
	dir := setupEnv(t)
	if _, err := runCLI(t, "", "genesis", "--caller", "admin", "--rect", "0,0,250,250", "--price", "20000"); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	first := filepath.Join(dir, "first.json")
	body := `{"target":{"x":10,"y":10,"w":5,"h":5},"tiling":[{"rect":{"x":10,"y":10,"w":5,"h":5},"record_id":0}],"payment":500000,"buyer":"alice"}`
	if err := os.WriteFile(first, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "", "purchase", "--file", first); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	again := `{"target":{"x":11,"y":11,"w":2,"h":2},"tiling":[{"rect":{"x":11,"y":11,"w":2,"h":2},"record_id":0}],"payment":80000,"buyer":"bob"}`
	if _, err := runCLI(t, again, "purchase", "-f", "-"); !errors.Is(err, domain.ErrHoleConflict) {
		t.Fatalf("expected hole conflict, got %v", err)
	}
}

func TestCLIContentPutAndConfigShow(t *testing.T) {
	dir := setupEnv(t)
	payload := filepath.Join(dir, "zone.txt")
	if err := os.WriteFile(payload, []byte("hello zone"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "", "content", "put", payload, "--type", "text/plain")
	if err != nil {
		t.Fatalf("content put: %v", err)
	}
	ref := decode[map[string]string](t, out)["content_ref"]
	if !strings.HasPrefix(ref, "sha256:") {
		t.Fatalf("unexpected ref %q", ref)
	}
	if _, err := runCLI(t, "", "genesis", "--caller", "admin", "--rect", "0,0,10,10", "--content-ref", ref); err != nil {
		t.Fatalf("genesis with stored content: %v", err)
	}

	out, err = runCLI(t, "", "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "maintainer: admin") || !strings.Contains(out, "driver: sqlite") {
		t.Fatalf("unexpected config output:\n%s", out)
	}
}

func TestCLIClosesLedgerAfterFailedCommand(t *testing.T) {
	setupEnv(t)
	if _, err := runCLI(t, "", "genesis", "--caller", "admin", "--rect", "0,0,250,250", "--price", "20000"); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	var out, errOut bytes.Buffer
	a := &app{stdin: strings.NewReader(""), stdout: &out, stderr: &errOut}
	cmd := newRootCmdFor(a)
	cmd.SetArgs([]string{"price", "set", "0", "5", "--caller", "mallory"})
	if err := cmd.Execute(); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	st, ok := a.store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", a.store)
	}
	if err := st.DB().Ping(); err == nil {
		t.Fatalf("expected database to be closed after a failed command")
	}
	if err := a.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestParseRect(t *testing.T) {
	r, err := parseRect("1, 2,3,4")
	if err != nil || r != (domain.Rect{X: 1, Y: 2, W: 3, H: 4}) {
		t.Fatalf("unexpected %+v %v", r, err)
	}
	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "1,2,3,99999999999"} {
		if _, err := parseRect(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
