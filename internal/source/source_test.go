package source

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	text := "MsgBox \"你好，世界\"\r\nWScript.Echo 1\r\n"
	tests := []struct {
		enc      string
		detected string
	}{
		{ANSI, ANSI},
		{"gbk", ANSI},
		{UTF8, UTF8},
		{"utf-16", UTF16LE},
	}
	for _, tt := range tests {
		path := filepath.Join(dir, "sub", tt.enc+".vbs")
		if err := Save(path, text, tt.enc); err != nil {
			t.Fatalf("Save(%s): %v", tt.enc, err)
		}
		got, enc, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", tt.enc, err)
		}
		if got != text {
			t.Errorf("%s: round trip = %q, want %q", tt.enc, got, text)
		}
		if enc != tt.detected {
			t.Errorf("%s: detected %q, want %q", tt.enc, enc, tt.detected)
		}
	}
}

func TestANSIIsGBK(t *testing.T) {
	data, err := Encode("中", ANSI)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0xD6, 0xD0}) {
		t.Errorf("Encode(中) = % X, want D6 D0", data)
	}
}

func TestSetANSI(t *testing.T) {
	defer SetANSI("gbk")
	if err := SetANSI("windows-1252"); err != nil {
		t.Fatal(err)
	}
	if ANSIName() != "windows-1252" {
		t.Errorf("ANSIName() = %q", ANSIName())
	}
	data, err := Encode("é", ANSI)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0xE9}) {
		t.Errorf("Encode(é) = % X, want E9", data)
	}
	if err := SetANSI("klingon"); err == nil {
		t.Error("unknown code page should be rejected")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte{0xEF, 0xBB, 0xBF, 'x'}, UTF8},
		{[]byte{0xFF, 0xFE, 'x', 0}, UTF16LE},
		{[]byte{0xFE, 0xFF, 0, 'x'}, UTF16BE},
		{[]byte("plain"), UTF8},
		{[]byte{0xC4, 0xE3, 0xBA, 0xC3}, ANSI},
	}
	for _, tt := range tests {
		if got := Detect(tt.data); got != tt.want {
			t.Errorf("Detect(% X) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.vbs")); !os.IsNotExist(errors.Cause(err)) {
		t.Errorf("Load of a missing file = %v", err)
	}
	if _, err := Lookup("no-such-encoding"); err == nil {
		t.Error("Lookup should fail for an unknown encoding")
	}
}
