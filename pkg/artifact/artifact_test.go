// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/paqlet/paqlet/pkg/manifest"
)

// fakeLauncher stands in for the paqlet executable head. Any byte blob
// works: the builder treats the launcher as opaque.
var fakeLauncher = []byte("#!/fake/launcher\x00\x01\x02 not a real binary\n")

// testManifest builds a minimal validated manifest rooted at base.
func testManifest(t *testing.T, base string) *manifest.Manifest {
	t.Helper()
	return &manifest.Manifest{
		Name:         "demo",
		Exec:         manifest.Exec{Script: "ep.py", DefaultArgs: []string{"--fast"}},
		Requirements: []string{"requirements.txt"},
		Dependencies: []string{"requests"},
		UnpackRestrictions: manifest.Restrictions{
			MinimumPythonVersion: "3.8",
		},
		ResolvedBase: base,
	}
}

// writePayload creates the payload files the test manifest refers to.
func writePayload(t *testing.T, base string) []string {
	t.Helper()
	files := map[string]string{
		"ep.py":            "print('hello')\n",
		"requirements.txt": "requests\n",
		"sub/data.txt":     "data\n",
	}
	for rel, content := range files {
		full := filepath.Join(base, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return []string{"ep.py", "requirements.txt", "sub/data.txt"}
}

func buildTestArtifact(t *testing.T, base string) string {
	t.Helper()
	files := writePayload(t, base)
	out := filepath.Join(t.TempDir(), "demo.paq")
	if err := Build(testManifest(t, base), files, bytes.NewReader(fakeLauncher), out); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return out
}

func TestBuildAndOpenRoundTrip(t *testing.T) {
	t.Parallel()

	out := buildTestArtifact(t, t.TempDir())

	art, err := Open(out)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer art.Close()

	if art.Meta.Name != "demo" {
		t.Errorf("Meta.Name = %q, want %q", art.Meta.Name, "demo")
	}
	if art.Meta.ExecStyle != ExecScript {
		t.Errorf("Meta.ExecStyle = %q, want %q", art.Meta.ExecStyle, ExecScript)
	}
	if got := art.Meta.ExecValue; len(got) != 1 || got[0] != "ep.py" {
		t.Errorf("Meta.ExecValue = %v, want [ep.py]", got)
	}
	if got := art.Meta.RequirementFiles; len(got) != 1 || got[0] != "requirements.txt" {
		t.Errorf("Meta.RequirementFiles = %v, want [requirements.txt]", got)
	}
	if got := art.Meta.Dependencies; len(got) != 1 || got[0] != "requests" {
		t.Errorf("Meta.Dependencies = %v, want [requests]", got)
	}
	if got := art.Meta.UnpackRestrictions[RestrictionMinimumPythonVersion]; got != "3.8" {
		t.Errorf("restriction %s = %q, want 3.8", RestrictionMinimumPythonVersion, got)
	}
	if art.Meta.BuiltAt.IsZero() {
		t.Error("Meta.BuiltAt not set by builder")
	}

	// The file must start with the launcher bytes: the head is the runnable
	// program, the archive is appended after it.
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, fakeLauncher) {
		t.Error("artifact does not start with the launcher bytes")
	}
}

func TestArtifactIsValidZip(t *testing.T) {
	t.Parallel()

	out := buildTestArtifact(t, t.TempDir())

	// The artifact as a whole must be readable by any stock ZIP reader.
	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("zip.OpenReader() error = %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{
		MetadataMember,
		PayloadPrefix + "ep.py",
		PayloadPrefix + "requirements.txt",
		PayloadPrefix + "sub/data.txt",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("member list = %v, want %v", names, want)
	}
}

func TestBuildDeterministicMembers(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	files := writePayload(t, base)
	m := testManifest(t, base)

	outA := filepath.Join(t.TempDir(), "a.paq")
	outB := filepath.Join(t.TempDir(), "b.paq")
	if err := Build(m, files, bytes.NewReader(fakeLauncher), outA); err != nil {
		t.Fatal(err)
	}
	if err := Build(m, files, bytes.NewReader(fakeLauncher), outB); err != nil {
		t.Fatal(err)
	}

	za, err := zip.OpenReader(outA)
	if err != nil {
		t.Fatal(err)
	}
	defer za.Close()
	zb, err := zip.OpenReader(outB)
	if err != nil {
		t.Fatal(err)
	}
	defer zb.Close()

	if len(za.File) != len(zb.File) {
		t.Fatalf("member counts differ: %d vs %d", len(za.File), len(zb.File))
	}
	for i := range za.File {
		fa, fb := za.File[i], zb.File[i]
		if fa.Name != fb.Name {
			t.Errorf("member %d name %q vs %q", i, fa.Name, fb.Name)
		}
		if !fa.Modified.Equal(fb.Modified) {
			t.Errorf("member %q timestamps differ: %v vs %v", fa.Name, fa.Modified, fb.Modified)
		}
		// Payload members must be byte-identical; only the metadata record
		// may differ (its built_at field).
		if fa.Name != MetadataMember && fa.CRC32 != fb.CRC32 {
			t.Errorf("member %q content differs between builds", fa.Name)
		}
	}
}

func TestExtractPayload(t *testing.T) {
	t.Parallel()

	out := buildTestArtifact(t, t.TempDir())
	art, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer art.Close()

	dest := t.TempDir()
	if err := art.ExtractPayload(dest); err != nil {
		t.Fatalf("ExtractPayload() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "orig", "ep.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "print('hello')\n" {
		t.Errorf("extracted ep.py = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "orig", "sub", "data.txt")); err != nil {
		t.Errorf("nested payload file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, MetadataMember)); !errors.Is(err, os.ErrNotExist) {
		t.Error("metadata member must not be extracted with the payload")
	}
}

func TestOpenPlainFileIsErrNoArchive(t *testing.T) {
	t.Parallel()

	plain := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(plain, fakeLauncher, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := Open(plain)
	if !errors.Is(err, ErrNoArchive) {
		t.Errorf("Open(plain binary) error = %v, want ErrNoArchive", err)
	}
}

func TestOpenZipWithoutMetadataIsErrNoArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "foreign.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("unrelated.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = Open(path)
	if !errors.Is(err, ErrNoArchive) {
		t.Errorf("Open(foreign zip) error = %v, want ErrNoArchive", err)
	}
}

func TestBuildUnreadableFileFails(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m := testManifest(t, base)
	// "missing.py" was never created.
	err := Build(m, []string{"missing.py"}, bytes.NewReader(fakeLauncher), filepath.Join(t.TempDir(), "demo.paq"))

	var berr *BuildError
	if !errors.As(err, &berr) {
		t.Fatalf("Build() error = %v, want *BuildError", err)
	}
	if !filepath.IsAbs(berr.Path) || filepath.Base(berr.Path) != "missing.py" {
		t.Errorf("BuildError.Path = %q, want the offending payload path", berr.Path)
	}
}

func TestBuildLeavesNoPartialArtifact(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	m := testManifest(t, base)
	outDir := t.TempDir()
	out := filepath.Join(outDir, "demo.paq")

	if err := Build(m, []string{"missing.py"}, bytes.NewReader(fakeLauncher), out); err == nil {
		t.Fatal("Build() with unreadable input should fail")
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed build left a file at the final artifact path")
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed build left temp files behind: %v", entries)
	}
}

func TestStampFollowsModTime(t *testing.T) {
	t.Parallel()

	out := buildTestArtifact(t, t.TempDir())

	ts := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	if err := os.Chtimes(out, ts, ts); err != nil {
		t.Fatal(err)
	}

	art, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer art.Close()

	if got := art.Stamp(); got != "20240501123045" {
		t.Errorf("Stamp() = %q, want 20240501123045", got)
	}
}
