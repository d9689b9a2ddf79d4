package scripttest

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const mathTests = `Dim base

Sub Setup()
  base = 40
End Sub

Sub Teardown()
  WScript.Echo "teardown"
End Sub

Function Helper(n)
  Helper = n + base
End Function

Sub TestAddition()
  AssertEqual 42, Helper(2), "helper adds base"
  Assert Len("abc") = 3
End Sub

Sub TestBrokenAssertion()
  AssertEqual "a", "b", "letters"
  WScript.Echo "still running"
End Sub

Sub TestFault()
  x = 1 / 0
End Sub

Sub TestSkipped()
  Skip "not on this platform"
  Fail "unreachable"
End Sub

Sub TestResumeDoesNotHideSkip()
  On Error Resume Next
  Skip "always"
End Sub
`

func writeSuite(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runSuite(t *testing.T, cfg *TestConfig, text string) (*TestSuite, *TestStats, string) {
	t.Helper()
	path := writeSuite(t, t.TempDir(), "math_test.vbs", text)
	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	r := NewTestRunner(cfg, &out)
	r.AddSuite(suite)
	stats := r.Run(context.Background())
	return suite, stats, out.String()
}

func TestLoadSuite(t *testing.T) {
	path := writeSuite(t, t.TempDir(), "math_test.vbs", mathTests)
	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"TestAddition", "TestBrokenAssertion", "TestFault", "TestSkipped", "TestResumeDoesNotHideSkip"}
	if strings.Join(suite.Tests, ",") != strings.Join(want, ",") {
		t.Errorf("tests = %v", suite.Tests)
	}
	if !suite.Setup || !suite.Teardown || suite.Name != "math_test" {
		t.Errorf("suite = %+v", suite)
	}
}

func TestRunOutcomes(t *testing.T) {
	suite, stats, _ := runSuite(t, &TestConfig{Timeout: 5 * time.Second}, mathTests)
	if stats.TotalTests != 5 || stats.PassedTests != 1 || stats.FailedTests != 2 || stats.SkippedTests != 2 {
		t.Errorf("stats = %+v", stats)
	}
	byName := map[string]TestResult{}
	for _, r := range suite.Results {
		byName[r.Name] = r
	}

	if r := byName["TestAddition"]; !r.Passed || r.Output != "teardown\n" {
		t.Errorf("TestAddition = %+v", r)
	}
	broken := byName["TestBrokenAssertion"]
	if !broken.Failed || broken.Error != nil || !strings.Contains(broken.Message, `Expected: "a"`) {
		t.Errorf("TestBrokenAssertion = %+v", broken)
	}
	if !strings.Contains(broken.Output, "still running") {
		t.Error("failed assertion stopped the test")
	}
	if r := byName["TestFault"]; !r.Failed || r.Error == nil || !strings.Contains(r.Error.Error(), "DivideByZero") {
		t.Errorf("TestFault = %+v", r)
	}
	if r := byName["TestSkipped"]; !r.Skipped || r.Message != "not on this platform" {
		t.Errorf("TestSkipped = %+v", r)
	}
	if r := byName["TestResumeDoesNotHideSkip"]; !r.Skipped {
		t.Errorf("TestResumeDoesNotHideSkip = %+v", r)
	}
}

func TestFilter(t *testing.T) {
	_, stats, out := runSuite(t, &TestConfig{Filter: "addition"}, mathTests)
	if stats.PassedTests != 1 || stats.SkippedTests != 4 || stats.FailedTests != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(out, "SKIP TestFault (filtered out)") {
		t.Errorf("output = %s", out)
	}
}

func TestFailFast(t *testing.T) {
	suite, _, _ := runSuite(t, &TestConfig{FailFast: true}, mathTests)
	if len(suite.Results) != 2 {
		t.Errorf("ran %d tests after a failure", len(suite.Results))
	}
}

func TestTimeout(t *testing.T) {
	_, stats, _ := runSuite(t, &TestConfig{Timeout: 50 * time.Millisecond}, "Sub TestSpin()\n  Do\n  Loop\nEnd Sub\n")
	if stats.FailedTests != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestJSONReport(t *testing.T) {
	_, _, out := runSuite(t, &TestConfig{OutputFormat: "json"}, mathTests)
	var summary JSONSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if summary.TotalTests != 5 || len(summary.Results) != 5 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestJUnitReport(t *testing.T) {
	_, _, out := runSuite(t, &TestConfig{OutputFormat: "junit"}, mathTests)
	var suites JUnitTestSuites
	if err := xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &suites); err != nil {
		t.Fatalf("invalid XML: %v\n%s", err, out)
	}
	if len(suites.TestSuites) != 1 {
		t.Fatalf("suites = %+v", suites)
	}
	s := suites.TestSuites[0]
	if s.Tests != 5 || s.Failures != 2 || s.Skipped != 2 {
		t.Errorf("suite = %+v", s)
	}
}

func TestDiscoverTests(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "b_test.vbs", "")
	writeSuite(t, dir, "sub/a_test.VBS", "")
	writeSuite(t, dir, "helper.vbs", "")
	writeSuite(t, dir, ".hidden/c_test.vbs", "")
	got, err := DiscoverTests(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "b_test.vbs" || filepath.Base(got[1]) != "a_test.VBS" {
		t.Errorf("DiscoverTests = %v", got)
	}
}
