// SPDX-License-Identifier: MPL-2.0

package fileset

import "testing"

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
		wantErr bool
	}{
		{name: "literal match", pattern: "ep.py", path: "ep.py", want: true},
		{name: "literal mismatch", pattern: "ep.py", path: "other.py", want: false},
		{name: "star within segment", pattern: "*.py", path: "ep.py", want: true},
		{name: "star does not cross separator", pattern: "*.py", path: "sub/ep.py", want: false},
		{name: "question mark", pattern: "e?.py", path: "ep.py", want: true},
		{name: "char class", pattern: "data[0-9].csv", path: "data3.csv", want: true},
		{name: "char class mismatch", pattern: "data[0-9].csv", path: "dataX.csv", want: false},
		{name: "doublestar matches everything", pattern: "**", path: "a/b/c.txt", want: true},
		{name: "doublestar matches top level file", pattern: "**", path: "c.txt", want: true},
		{name: "doublestar crosses directories", pattern: "**/secret*", path: "a/b/secret.key", want: true},
		{name: "doublestar matches zero segments", pattern: "**/secret*", path: "secrets.txt", want: true},
		{name: "doublestar in the middle", pattern: "src/**/test_*.py", path: "src/pkg/sub/test_x.py", want: true},
		{name: "doublestar middle zero segments", pattern: "src/**/test_*.py", path: "src/test_x.py", want: true},
		{name: "segment pattern anchored", pattern: "dir2/cache", path: "dir2/cache", want: true},
		{name: "segment pattern not a suffix match", pattern: "dir2/cache", path: "x/dir2/cache", want: false},
		{name: "leading dot-slash normalized", pattern: "./sub/*.py", path: "sub/ep.py", want: true},
		{name: "malformed class", pattern: "data[0-9.csv", path: "data3.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Match(tt.pattern, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Match(%q, %q) error = %v, wantErr %v", tt.pattern, tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{name: "simple", pattern: "*.py"},
		{name: "recursive", pattern: "**/cache"},
		{name: "empty", pattern: "", wantErr: true},
		{name: "whitespace", pattern: "   ", wantErr: true},
		{name: "absolute", pattern: "/etc/passwd", wantErr: true},
		{name: "backslash separator", pattern: `sub\*.py`, wantErr: true},
		{name: "malformed class", pattern: "x[", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
		})
	}
}
