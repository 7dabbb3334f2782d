package loader

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/confloader/internal/registry"
)

type assignment struct {
	key   string
	value string
}

// recordingTarget accepts any key and remembers assignments in order.
type recordingTarget struct {
	assignments []assignment
}

func (r *recordingTarget) Set(key, value string) error {
	r.assignments = append(r.assignments, assignment{key: key, value: value})
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func newRegistry(t *testing.T, keys ...string) *registry.Registry {
	t.Helper()

	reg := registry.New()
	for _, key := range keys {
		if err := reg.Register(key, ""); err != nil {
			t.Fatalf("Register(%q) returned error: %v", key, err)
		}
	}
	return reg
}

func loadRelative(target Target, root string) error {
	return New(WithRelativeImports()).Load(target, root)
}

func mustValue(t *testing.T, reg *registry.Registry, key string) string {
	t.Helper()

	entry, err := reg.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) returned error: %v", key, err)
	}
	return entry.String()
}

func TestLoadImportedValuesAreOverriddenByLaterLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.conf", "timeout: 10\nretries: 3\n")
	writeFile(t, dir, "root.conf", "import base.conf\ntimeout: 30\n")
	t.Chdir(dir)

	reg := newRegistry(t, "timeout", "retries")
	if err := New(WithLogger(zaptest.NewLogger(t))).Load(reg, "root.conf"); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := mustValue(t, reg, "timeout"); got != "30" {
		t.Fatalf("expected timeout 30, got %q", got)
	}
	if got := mustValue(t, reg, "retries"); got != "3" {
		t.Fatalf("expected retries 3, got %q", got)
	}
}

func TestLoadResolvesImportsDepthFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "c.conf", "c: 1\nshared: from-c\n")
	writeFile(t, dir, "b.conf", "b: 1\nimport c.conf\nafter_c: 1\n")
	root := writeFile(t, dir, "a.conf", "a: 1\nimport b.conf\nshared: from-a\n")

	target := &recordingTarget{}
	if err := loadRelative(target, root); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	var got []string
	for _, a := range target.assignments {
		got = append(got, a.key+"="+a.value)
	}
	want := []string{"a=1", "b=1", "c=1", "shared=from-c", "after_c=1", "shared=from-a"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected assignment order:\n got %v\nwant %v", got, want)
	}
}

func TestLoadGrammar(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{
		"# leading comment",
		"",
		"   ",
		"\t  host :   example.org  \t",
		"url: http://example.org:8080/path",
		"   # indented comment",
		"flag",
		"imports: 3",
		"import:inline",
		"empty:",
		"windows: crlf\r",
	}, "\n")

	dir := t.TempDir()
	root := writeFile(t, dir, "app.conf", content)
	reg := newRegistry(t, "host", "url", "flag", "imports", "import", "empty", "windows")
	if err := reg.Register("untouched", "default"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if err := Load(reg, root); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := map[string]string{
		"host":      "example.org",
		"url":       "http://example.org:8080/path",
		"flag":      "",
		"imports":   "3",
		"import":    "inline",
		"empty":     "",
		"windows":   "crlf",
		"untouched": "default",
	}
	for key, value := range want {
		if got := mustValue(t, reg, key); got != value {
			t.Fatalf("expected %s=%q, got %q", key, value, got)
		}
	}
}

func TestLoadRejectsUnknownKeyWithContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := writeFile(t, dir, "app.conf", "known: 1\n# comment\n  mystery : 2\nknown: 3\n")
	reg := newRegistry(t, "known")

	err := Load(reg, root)
	if !errors.Is(err, registry.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}

	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected *LineError, got %T", err)
	}
	if lineErr.Path != root || lineErr.Line != 3 || lineErr.Content != "mystery : 2" {
		t.Fatalf("unexpected line error: %+v", lineErr)
	}

	// Lines before the failure stay applied, later lines are not.
	if got := mustValue(t, reg, "known"); got != "1" {
		t.Fatalf("expected partially applied value 1, got %q", got)
	}
}

func TestLoadMissingRootFile(t *testing.T) {
	t.Parallel()

	err := Load(newRegistry(t), filepath.Join(t.TempDir(), "missing.conf"))
	if !errors.Is(err, ErrFileOpen) {
		t.Fatalf("expected ErrFileOpen, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestLoadMissingImportAbortsLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := writeFile(t, dir, "root.conf", "a: 1\nimport nope.conf\na: 2\n")
	reg := newRegistry(t, "a")

	err := Load(reg, root)
	if !errors.Is(err, ErrFileOpen) {
		t.Fatalf("expected ErrFileOpen, got %v", err)
	}

	var lineErr *LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 2 || lineErr.Content != "import nope.conf" {
		t.Fatalf("expected import line context, got %v", err)
	}
	if got := mustValue(t, reg, "a"); got != "1" {
		t.Fatalf("expected lines after failure to be skipped, got %q", got)
	}
}

func TestLoadErrorInsideImportNamesImportedLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := writeFile(t, dir, "base.conf", "ok: 1\nbad: 2\n")
	root := writeFile(t, dir, "root.conf", "import base.conf\n")

	err := loadRelative(newRegistry(t, "ok"), root)
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected *LineError, got %v", err)
	}
	if lineErr.Path != base || lineErr.Line != 2 {
		t.Fatalf("expected error at %s:2, got %s:%d", base, lineErr.Path, lineErr.Line)
	}
}

func TestLoadSelfImport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := writeFile(t, dir, "self.conf", "a: 1\nimport self.conf\n")

	err := loadRelative(newRegistry(t, "a"), root)
	if !errors.Is(err, ErrSelfImport) {
		t.Fatalf("expected ErrSelfImport, got %v", err)
	}
	if errors.Is(err, ErrCircularImport) {
		t.Fatalf("self import should not be reported as circular: %v", err)
	}
}

func TestLoadSelfImportWithEquivalentPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := writeFile(t, dir, "conf/self.conf", "import ../conf/./self.conf\n")

	if err := loadRelative(newRegistry(t), root); !errors.Is(err, ErrSelfImport) {
		t.Fatalf("expected ErrSelfImport, got %v", err)
	}
}

func TestLoadCircularImport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b.conf", "import c.conf\n")
	writeFile(t, dir, "c.conf", "import a.conf\n")
	root := writeFile(t, dir, "a.conf", "import b.conf\n")

	err := loadRelative(newRegistry(t), root)
	if !errors.Is(err, ErrCircularImport) {
		t.Fatalf("expected ErrCircularImport, got %v", err)
	}
	if !strings.Contains(err.Error(), "a.conf -> ") {
		t.Fatalf("expected import chain in error, got %q", err.Error())
	}
}

func TestLoadSameFileImportedTwiceIsAllowed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "common.conf", "count: 1\n")
	writeFile(t, dir, "x.conf", "import common.conf\n")
	root := writeFile(t, dir, "root.conf", "import common.conf\ncount: 2\nimport x.conf\n")

	reg := newRegistry(t, "count")
	if err := loadRelative(reg, root); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := mustValue(t, reg, "count"); got != "1" {
		t.Fatalf("expected re-imported value 1, got %q", got)
	}
}

func TestLoadAbsoluteAndNestedImports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	shared := writeFile(t, dir, "shared/db.conf", "import ../defaults/db.conf\ndb_port: 5433\n")
	writeFile(t, dir, "defaults/db.conf", "db_host: localhost\ndb_port: 5432\n")
	root := writeFile(t, dir, "app/root.conf", "import    "+shared+"\n")

	reg := newRegistry(t, "db_host", "db_port")
	if err := loadRelative(reg, root); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := mustValue(t, reg, "db_host"); got != "localhost" {
		t.Fatalf("expected db_host localhost, got %q", got)
	}
	if got := mustValue(t, reg, "db_port"); got != "5433" {
		t.Fatalf("expected db_port 5433, got %q", got)
	}
}

func TestLoadEmptyImport(t *testing.T) {
	t.Parallel()

	root := writeFile(t, t.TempDir(), "root.conf", "import\n")
	if err := Load(newRegistry(t), root); !errors.Is(err, ErrEmptyImport) {
		t.Fatalf("expected ErrEmptyImport, got %v", err)
	}
}

func TestLoadMaxDepth(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "3.conf", "depth: 3\n")
	writeFile(t, dir, "2.conf", "import 3.conf\n")
	root := writeFile(t, dir, "1.conf", "import 2.conf\n")

	if err := New(WithMaxDepth(3), WithRelativeImports()).Load(newRegistry(t, "depth"), root); err != nil {
		t.Fatalf("expected depth 3 to be allowed, got %v", err)
	}
	if err := New(WithMaxDepth(2), WithRelativeImports()).Load(newRegistry(t, "depth"), root); !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestLoadResolvesImportsAgainstWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conf/base.conf", "timeout: 10\n")
	writeFile(t, dir, "conf/app.conf", "import conf/base.conf\nretries: 3\n")
	t.Chdir(dir)

	reg := newRegistry(t, "timeout", "retries")
	if err := Load(reg, "conf/app.conf"); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := mustValue(t, reg, "timeout"); got != "10" {
		t.Fatalf("expected imported timeout 10, got %q", got)
	}

	err := loadRelative(newRegistry(t, "timeout", "retries"), "conf/app.conf")
	if !errors.Is(err, ErrFileOpen) {
		t.Fatalf("expected ErrFileOpen in relative mode, got %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Join("conf", "conf", "base.conf")) {
		t.Fatalf("expected importer-relative path in error, got %q", err.Error())
	}
}

func TestLoadDetectsCyclesAcrossPathSpellings(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	writeFile(t, dir, "a.conf", "import ./b.conf\n")
	writeFile(t, dir, "b.conf", "import "+filepath.Join(wd, "a.conf")+"\n")
	writeFile(t, dir, "self.conf", "import ./self.conf\n")

	if err := Load(newRegistry(t), "a.conf"); !errors.Is(err, ErrCircularImport) {
		t.Fatalf("expected ErrCircularImport, got %v", err)
	}
	if err := Load(newRegistry(t), "self.conf"); !errors.Is(err, ErrSelfImport) {
		t.Fatalf("expected ErrSelfImport, got %v", err)
	}
}

func TestLoadStripsByteOrderMark(t *testing.T) {
	t.Parallel()

	root := writeFile(t, t.TempDir(), "bom.conf", "\ufefftimeout: 1\n\ufeffmarker: 2\n")
	reg := newRegistry(t, "timeout")

	err := Load(reg, root)
	if got := mustValue(t, reg, "timeout"); got != "1" {
		t.Fatalf("expected timeout 1 after BOM, got %q", got)
	}
	// Only the first line of a file may carry a byte order mark.
	var lineErr *LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 2 || !errors.Is(err, registry.ErrUnknownKey) {
		t.Fatalf("expected unknown key on line 2, got %v", err)
	}
}

func TestLoadNilTarget(t *testing.T) {
	t.Parallel()

	if err := Load(nil, "whatever.conf"); err == nil {
		t.Fatalf("expected error for nil target")
	}
}

func TestImportPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line     string
		wantPath string
		wantOK   bool
	}{
		{line: "import base.conf", wantPath: "base.conf", wantOK: true},
		{line: "import\t \tdir/with space.conf", wantPath: "dir/with space.conf", wantOK: true},
		{line: "import", wantPath: "", wantOK: true},
		{line: "imports: 1", wantOK: false},
		{line: "import:x", wantOK: false},
		{line: "key: import x", wantOK: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.line, func(t *testing.T) {
			path, ok := importPath(tc.line)
			if ok != tc.wantOK || path != tc.wantPath {
				t.Fatalf("importPath(%q) = %q, %t; want %q, %t", tc.line, path, ok, tc.wantPath, tc.wantOK)
			}
		})
	}
}
