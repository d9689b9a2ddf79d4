package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/text/language"
)

func start(t *testing.T, opts Options) *websocket.Conn {
	t.Helper()
	if opts.Locale == (language.Tag{}) {
		opts.Locale = language.AmericanEnglish
	}
	s := New(opts)
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/run"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// await reads until the result for id arrives, returning it together with
// the output streamed for that run.
func await(t *testing.T, conn *websocket.Conn, id string) (Response, string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var out strings.Builder
	for {
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.ID != id {
			continue
		}
		switch resp.Type {
		case TypeOutput:
			out.WriteString(resp.Text)
		case TypeResult, TypeError:
			return resp, out.String()
		}
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		out       string
		completed bool
		exitCode  int
		kind      string
		line      int
	}{
		{
			name:      "output",
			req:       Request{Source: "WScript.Echo \"hi\"\nWScript.Echo 1 + 1\n"},
			out:       "hi\n2\n",
			completed: true,
		},
		{
			name:      "arguments",
			req:       Request{Source: `WScript.Echo WScript.Arguments.Count & ":" & WScript.Arguments(1)`, Args: []string{"a", "b"}},
			out:       "2:b\n",
			completed: true,
		},
		{
			name:      "stdin",
			req:       Request{Source: `WScript.Echo UCase(WScript.StdIn.ReadLine)`, Input: "quiet\n"},
			out:       "QUIET\n",
			completed: true,
		},
		{
			name:      "quit",
			req:       Request{Source: "WScript.Echo \"bye\"\nWScript.Quit 3\nWScript.Echo \"no\"\n"},
			out:       "bye\n",
			completed: true,
			exitCode:  3,
		},
		{
			name: "runtime fault",
			req:  Request{Source: "x = 1\ny = x / 0\n"},
			kind: "DivideByZero",
			line: 2,
		},
		{
			name: "parse error",
			req:  Request{Source: "If x Then\n"},
			kind: "ParseError",
		},
	}
	conn := start(t, Options{Workers: 2})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Type = TypeRun
			req.ID = strings.ReplaceAll(tt.name, " ", "-")
			if err := conn.WriteJSON(req); err != nil {
				t.Fatal(err)
			}
			res, out := await(t, conn, req.ID)
			if res.Type != TypeResult {
				t.Fatalf("got %s: %s", res.Type, res.Text)
			}
			if out != tt.out {
				t.Errorf("output = %q, want %q", out, tt.out)
			}
			if res.Completed != tt.completed || res.ExitCode != tt.exitCode {
				t.Errorf("completed=%v exitCode=%d", res.Completed, res.ExitCode)
			}
			if tt.kind == "" {
				if res.Error != nil {
					t.Errorf("unexpected fault %+v", res.Error)
				}
				return
			}
			if res.Error == nil || res.Error.Kind != tt.kind {
				t.Fatalf("fault = %+v, want %s", res.Error, tt.kind)
			}
			if tt.line != 0 && res.Error.Line != tt.line {
				t.Errorf("fault line = %d, want %d", res.Error.Line, tt.line)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	conn := start(t, Options{Workers: 1})
	req := Request{Type: TypeRun, ID: "spin", Source: "Do\nWScript.Sleep 10\nLoop\n"}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatal(err)
	}
	var accepted Response
	if err := conn.ReadJSON(&accepted); err != nil || accepted.Type != TypeAccepted {
		t.Fatalf("accepted = %+v, %v", accepted, err)
	}
	if err := conn.WriteJSON(Request{Type: TypeCancel, ID: "spin"}); err != nil {
		t.Fatal(err)
	}
	res, _ := await(t, conn, "spin")
	if res.Completed || res.Error == nil || res.Error.Kind != "Interrupted" {
		t.Errorf("result = %+v", res)
	}
}

func TestTimeout(t *testing.T) {
	conn := start(t, Options{Workers: 1, Timeout: 50 * time.Millisecond})
	if err := conn.WriteJSON(Request{Type: TypeRun, ID: "loop", Source: "Do While True\nLoop\n"}); err != nil {
		t.Fatal(err)
	}
	res, _ := await(t, conn, "loop")
	if res.Error == nil || res.Error.Kind != "Interrupted" {
		t.Errorf("result = %+v", res)
	}
}

func TestGeneratedRunID(t *testing.T) {
	conn := start(t, Options{})
	if err := conn.WriteJSON(Request{Type: TypeRun, Source: `WScript.Echo "x"`}); err != nil {
		t.Fatal(err)
	}
	var accepted Response
	if err := conn.ReadJSON(&accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Type != TypeAccepted || len(accepted.ID) != 36 {
		t.Errorf("accepted = %+v", accepted)
	}
}

func TestBadRequests(t *testing.T) {
	conn := start(t, Options{})
	tests := []struct {
		req  Request
		want string
	}{
		{Request{Type: "compile", ID: "a"}, "unknown request type"},
		{Request{Type: TypeCancel, ID: "nothing"}, "no such run"},
	}
	for _, tt := range tests {
		if err := conn.WriteJSON(tt.req); err != nil {
			t.Fatal(err)
		}
		res, _ := await(t, conn, tt.req.ID)
		if res.Type != TypeError || !strings.Contains(res.Text, tt.want) {
			t.Errorf("%s: got %+v", tt.req.Type, res)
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(New(Options{}))
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}
