// Package source loads and saves script text in the code pages legacy
// scripts are written in. "ANSI" names the machine code page, GBK unless
// configured otherwise.
package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names accepted besides the WHATWG labels.
const (
	ANSI    = "ansi"
	UTF8    = "utf-8"
	UTF16LE = "utf-16le"
	UTF16BE = "utf-16be"
)

var (
	mu       sync.RWMutex
	ansiName = "gbk"
	ansiEnc  encoding.Encoding = simplifiedchinese.GBK
)

// SetANSI selects the code page "ANSI" refers to.
func SetANSI(name string) error {
	if strings.EqualFold(name, ANSI) {
		return nil
	}
	enc, err := lookup(name)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	ansiName, ansiEnc = strings.ToLower(name), enc
	return nil
}

// ANSIName reports the code page currently used for "ANSI".
func ANSIName() string {
	mu.RLock()
	defer mu.RUnlock()
	return ansiName
}

// Lookup resolves an encoding name: "ansi", "utf-8", "utf-16" (little
// endian with BOM), or any WHATWG label such as "gbk", "gb2312", "big5",
// "shift_jis", "windows-1252".
func Lookup(name string) (encoding.Encoding, error) {
	if strings.EqualFold(strings.TrimSpace(name), ANSI) || name == "" {
		mu.RLock()
		defer mu.RUnlock()
		return ansiEnc, nil
	}
	return lookup(name)
}

func lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	case "utf-16", "unicode":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown encoding %q", name)
	}
	return enc, nil
}

// Detect guesses the encoding of data: a byte order mark wins, valid
// UTF-8 is UTF-8, anything else is ANSI.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return UTF8
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return UTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return UTF16BE
	case utf8.Valid(data):
		return UTF8
	}
	return ANSI
}

// Decode converts data in the named encoding to a string. A byte order
// mark is dropped.
func Decode(data []byte, name string) (string, error) {
	enc, err := Lookup(name)
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", errors.Wrapf(err, "decoding %s", name)
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}

// Encode converts text to the named encoding. Characters the code page
// cannot represent are replaced rather than rejected.
func Encode(text, name string) ([]byte, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, _, err := transform.Bytes(encoding.ReplaceUnsupported(enc.NewEncoder()), []byte(text))
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", name)
	}
	return out, nil
}

// Load reads a file, detecting its encoding. It returns the text and the
// encoding it was read with.
func Load(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", errors.Wrap(err, "reading script")
	}
	name := Detect(data)
	text, err := Decode(data, name)
	if err != nil {
		return "", "", errors.Wrapf(err, "reading %s", path)
	}
	return text, name, nil
}

// LoadAs reads a file in a known encoding.
func LoadAs(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "reading script")
	}
	return Decode(data, name)
}

// Save writes text to path in the named encoding, creating parent
// directories as needed.
func Save(path, text, name string) error {
	data, err := Encode(text, name)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "creating directory")
		}
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing %s", path)
}
