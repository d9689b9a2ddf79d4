package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"vbscript/internal/host"
)

func session(t *testing.T, input string) (string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	h := host.New(host.WithOutput(&out), host.WithInput(strings.NewReader(""), false))
	defer h.Close()
	r := New(h.Registry(), &out, &errOut)
	if err := r.Serve(context.Background(), strings.NewReader(input), false); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	return out.String(), errOut.String()
}

func TestStatePersists(t *testing.T) {
	out, errOut := session(t, `x = 20
Function Double(n)
  Double = n * 2
End Function
? Double(x) + 2
`)
	if errOut != "" {
		t.Fatalf("unexpected faults: %s", errOut)
	}
	if !strings.Contains(out, "42\n") {
		t.Errorf("output = %q", out)
	}
}

func TestBlockContinuation(t *testing.T) {
	out, _ := session(t, `For i = 1 To 3
  WScript.Echo i
Next
`)
	if !strings.HasPrefix(out, "1\n2\n3\n") {
		t.Errorf("output = %q", out)
	}
}

func TestFaultsDoNotEndSession(t *testing.T) {
	out, errOut := session(t, `x = 1 / 0
? "still here"
`)
	if !strings.Contains(errOut, "DivideByZero") {
		t.Errorf("fault not reported: %q", errOut)
	}
	if !strings.Contains(out, "still here") {
		t.Errorf("session ended after fault: %q", out)
	}
}

func TestCommands(t *testing.T) {
	out, errOut := session(t, `name = "ann"
:vars
:bogus
:quit
? "unreachable"
`)
	if !strings.Contains(out, `name = "ann"`) {
		t.Errorf(":vars output = %q", out)
	}
	if !strings.Contains(errOut, "unknown command :bogus") {
		t.Errorf("errOut = %q", errOut)
	}
	if strings.Contains(out, "unreachable") {
		t.Error(":quit did not end the session")
	}
}

func TestQuitEndsSession(t *testing.T) {
	out, _ := session(t, `WScript.Quit
? "unreachable"
`)
	if strings.Contains(out, "unreachable") {
		t.Error("WScript.Quit did not end the session")
	}
}

func TestComplete(t *testing.T) {
	h := host.New()
	defer h.Close()
	r := New(h.Registry(), &bytes.Buffer{}, &bytes.Buffer{})
	got := r.complete("x = UCa")
	if len(got) != 1 || got[0] != "x = UCase" {
		t.Errorf("complete = %q", got)
	}
}
