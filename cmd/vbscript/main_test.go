package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func script(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func invoke(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &out, stderr: &errOut}
	code := a.main(context.Background(), args)
	return code, out.String(), errOut.String()
}

func TestRunScript(t *testing.T) {
	path := script(t, "hello.vbs", "WScript.Echo \"hello \" & WScript.Arguments(0)\nWScript.Quit 4\n")
	code, out, errOut := invoke(t, "", "run", path, "world")
	if code != 4 {
		t.Errorf("exit code = %d, stderr %q", code, errOut)
	}
	if out != "hello world\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunReadsStdin(t *testing.T) {
	path := script(t, "echo.vbs", "Do Until WScript.StdIn.AtEndOfStream\n  WScript.Echo LCase(WScript.StdIn.ReadLine)\nLoop\n")
	code, out, _ := invoke(t, "ONE\nTWO\n", "run", path)
	if code != 0 || out != "one\ntwo\n" {
		t.Errorf("code %d, stdout %q", code, out)
	}
}

func TestRunFault(t *testing.T) {
	path := script(t, "bad.vbs", "x = 1\nWScript.Echo x / 0\n")
	code, _, errOut := invoke(t, "", "run", path)
	if code != 1 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(errOut, "DivideByZero") || !strings.Contains(errOut, "bad.vbs:2") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunTimeout(t *testing.T) {
	path := script(t, "spin.vbs", "Do\nLoop\n")
	start := time.Now()
	code, _, errOut := invoke(t, "", "run", "--timeout", "50ms", path)
	if code != 1 || !strings.Contains(errOut, "Interrupted") {
		t.Errorf("code %d, stderr %q", code, errOut)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout not honoured")
	}
}

func TestCheck(t *testing.T) {
	good := script(t, "good.vbs", "Dim x\nx = 1\n")
	bad := script(t, "bad.vbs", "For i = 1\nNext\n")
	code, out, errOut := invoke(t, "", "check", good, bad)
	if code != 1 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(out, "good.vbs: syntax is valid") {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "ParseError") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestFmt(t *testing.T) {
	path := script(t, "messy.vbs", "if x then\ny=1\nend if\n")

	code, out, _ := invoke(t, "", "fmt", "-l", path)
	if code != 0 || strings.TrimSpace(out) != path {
		t.Fatalf("-l: code %d, stdout %q", code, out)
	}
	if code, _, errOut := invoke(t, "", "fmt", "-w", path); code != 0 {
		t.Fatalf("-w: code %d, stderr %q", code, errOut)
	}
	code, out, _ = invoke(t, "", "fmt", "-l", path)
	if code != 0 || out != "" {
		t.Errorf("file still differs after -w: %q", out)
	}
	written, _ := os.ReadFile(path)
	if !strings.Contains(string(written), "If x Then") {
		t.Errorf("rewritten file = %q", written)
	}
}

func TestAst(t *testing.T) {
	path := script(t, "a.vbs", "x = 1\n")
	code, out, _ := invoke(t, "", "ast", path)
	if code != 0 || !strings.Contains(out, "AssignStmt") {
		t.Errorf("code %d, stdout %q", code, out)
	}
}

func TestReplFromPipe(t *testing.T) {
	code, out, errOut := invoke(t, "n = 6\n? n * 7\n", "repl")
	if code != 0 || !strings.Contains(out, "42") {
		t.Errorf("code %d, stdout %q, stderr %q", code, out, errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		args []string
		code int
	}{
		{nil, 2},
		{[]string{"help"}, 0},
		{[]string{"version"}, 0},
		{[]string{"frobnicate"}, 2},
		{[]string{"run"}, 2},
		{[]string{"run", "--bogus", "x.vbs"}, 2},
		{[]string{"run", "--timeout"}, 2},
		{[]string{"run", "--locale", "!!", "x.vbs"}, 2},
		{[]string{"run", "does-not-exist.vbs"}, 1},
	}
	for _, tt := range tests {
		code, _, _ := invoke(t, "", tt.args...)
		if code != tt.code {
			t.Errorf("%q: exit code %d, want %d", tt.args, code, tt.code)
		}
	}
}

func TestParseFlags(t *testing.T) {
	fl, rest, err := parseFlags([]string{"--encoding=utf-8", "--workers", "3", "-w", "a.vbs", "--not-a-flag"})
	if err != nil {
		t.Fatal(err)
	}
	if fl.encoding != "utf-8" || fl.workers != 3 || !fl.write {
		t.Errorf("flags = %+v", fl)
	}
	if len(rest) != 2 || rest[1] != "--not-a-flag" {
		t.Errorf("rest = %q", rest)
	}
}

func TestScriptTests(t *testing.T) {
	dir := t.TempDir()
	passing := "Sub TestUpper()\n  AssertEqual \"AB\", UCase(\"ab\")\nEnd Sub\n"
	failing := "Sub TestWrong()\n  AssertEqual 1, 2, \"numbers\"\nEnd Sub\n"
	if err := os.WriteFile(filepath.Join(dir, "strings_test.vbs"), []byte(passing), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := invoke(t, "", "test", dir)
	if code != 0 || !strings.Contains(out, "PASS TestUpper") {
		t.Errorf("code %d, stdout %q, stderr %q", code, out, errOut)
	}

	if err := os.WriteFile(filepath.Join(dir, "numbers_test.vbs"), []byte(failing), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, _ = invoke(t, "", "test", "--format", "json", dir)
	if code != 1 || !strings.Contains(out, `"failed_tests": 1`) {
		t.Errorf("code %d, stdout %q", code, out)
	}

	if code, _, _ := invoke(t, "", "test", "--format", "tap", dir); code != 2 {
		t.Errorf("unknown format accepted: %d", code)
	}
}
