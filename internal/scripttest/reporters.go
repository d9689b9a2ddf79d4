package scripttest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// TextReporter writes human-readable results as they arrive.
type TextReporter struct {
	out     io.Writer
	verbose bool
	color   bool
	indent  int
}

func NewTextReporter(out io.Writer, verbose, color bool) *TextReporter {
	return &TextReporter{out: out, verbose: verbose, color: color}
}

func (r *TextReporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + "\033[0m"
}

func (r *TextReporter) StartSuite(suite *TestSuite) {
	fmt.Fprintf(r.out, "\n%s (%d tests)\n", suite.File, len(suite.Tests))
	r.indent = 2
}

func (r *TextReporter) EndSuite(suite *TestSuite) {
	fmt.Fprintf(r.out, "%scompleted in %v\n", strings.Repeat(" ", r.indent), suite.EndTime.Sub(suite.StartTime).Round(time.Millisecond))
	r.indent = 0
}

func (r *TextReporter) TestPassed(result TestResult) {
	pad := strings.Repeat(" ", r.indent)
	fmt.Fprintf(r.out, "%s%s %s (%v)\n", pad, r.paint("\033[32m", "PASS"), result.Name, result.Duration.Round(time.Microsecond))
	if r.verbose && result.Output != "" {
		r.block(result.Output)
	}
}

func (r *TextReporter) TestFailed(result TestResult) {
	pad := strings.Repeat(" ", r.indent)
	fmt.Fprintf(r.out, "%s%s %s (%v)\n", pad, r.paint("\033[31m", "FAIL"), result.Name, result.Duration.Round(time.Microsecond))
	if result.Error != nil {
		r.block(result.Error.Error())
	}
	if result.Message != "" {
		r.block(result.Message)
	}
	if result.Output != "" {
		r.block(result.Output)
	}
}

func (r *TextReporter) TestSkipped(result TestResult) {
	pad := strings.Repeat(" ", r.indent)
	fmt.Fprintf(r.out, "%s%s %s (%s)\n", pad, r.paint("\033[33m", "SKIP"), result.Name, result.Message)
}

func (r *TextReporter) block(text string) {
	pad := strings.Repeat(" ", r.indent+4)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(r.out, "%s%s\n", pad, line)
	}
}

func (r *TextReporter) Summary(stats *TestStats) {
	fmt.Fprintf(r.out, "\n%d tests in %d files: %d passed, %d failed, %d skipped (%v)\n",
		stats.TotalTests, stats.Suites, stats.PassedTests, stats.FailedTests, stats.SkippedTests,
		stats.TotalTime.Round(time.Millisecond))
	if stats.FailedTests == 0 {
		fmt.Fprintln(r.out, r.paint("\033[32m", "ok"))
	} else {
		fmt.Fprintln(r.out, r.paint("\033[31m", "FAIL"))
	}
}

// JSONReporter writes one JSON document with every result at the end.
type JSONReporter struct {
	out     io.Writer
	results []JSONTestResult
}

type JSONTestResult struct {
	Suite    string        `json:"suite"`
	Test     string        `json:"test"`
	Passed   bool          `json:"passed"`
	Failed   bool          `json:"failed"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Message  string        `json:"message,omitempty"`
	Output   string        `json:"output,omitempty"`
}

type JSONSummary struct {
	Results      []JSONTestResult `json:"results"`
	TotalTests   int              `json:"total_tests"`
	PassedTests  int              `json:"passed_tests"`
	FailedTests  int              `json:"failed_tests"`
	SkippedTests int              `json:"skipped_tests"`
	TotalTime    time.Duration    `json:"total_time"`
}

func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out, results: make([]JSONTestResult, 0)}
}

func (r *JSONReporter) StartSuite(suite *TestSuite) {}

func (r *JSONReporter) EndSuite(suite *TestSuite) {}

func (r *JSONReporter) add(result TestResult) {
	errorMsg := ""
	if result.Error != nil {
		errorMsg = result.Error.Error()
	}
	r.results = append(r.results, JSONTestResult{
		Suite:    result.File,
		Test:     result.Name,
		Passed:   result.Passed,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Duration: result.Duration,
		Error:    errorMsg,
		Message:  result.Message,
		Output:   result.Output,
	})
}

func (r *JSONReporter) TestPassed(result TestResult)  { r.add(result) }
func (r *JSONReporter) TestFailed(result TestResult)  { r.add(result) }
func (r *JSONReporter) TestSkipped(result TestResult) { r.add(result) }

func (r *JSONReporter) Summary(stats *TestStats) {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	err := enc.Encode(JSONSummary{
		Results:      r.results,
		TotalTests:   stats.TotalTests,
		PassedTests:  stats.PassedTests,
		FailedTests:  stats.FailedTests,
		SkippedTests: stats.SkippedTests,
		TotalTime:    stats.TotalTime,
	})
	if err != nil {
		fmt.Fprintf(r.out, "Error generating JSON output: %v\n", err)
	}
}

// JUnitReporter writes JUnit XML for CI systems.
type JUnitReporter struct {
	out        io.Writer
	testSuites []JUnitTestSuite
}

type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

func NewJUnitReporter(out io.Writer) *JUnitReporter {
	return &JUnitReporter{out: out}
}

func (r *JUnitReporter) StartSuite(suite *TestSuite) {}

// EndSuite converts the finished suite; per-test callbacks are not needed.
func (r *JUnitReporter) EndSuite(suite *TestSuite) {
	js := JUnitTestSuite{
		Name:  suite.Name,
		Tests: len(suite.Results),
		Time:  suite.EndTime.Sub(suite.StartTime).Seconds(),
	}
	for _, result := range suite.Results {
		tc := JUnitTestCase{
			Name:      result.Name,
			ClassName: suite.Name,
			Time:      result.Duration.Seconds(),
			SystemOut: result.Output,
		}
		switch {
		case result.Failed:
			js.Failures++
			tc.Failure = &JUnitFailure{Type: "AssertionError", Message: result.Message}
			if result.Error != nil {
				tc.Failure.Type = "ScriptError"
				tc.Failure.Content = result.Error.Error()
			}
		case result.Skipped:
			js.Skipped++
			tc.Skipped = &JUnitSkipped{Message: result.Message}
		}
		js.TestCases = append(js.TestCases, tc)
	}
	r.testSuites = append(r.testSuites, js)
}

func (r *JUnitReporter) TestPassed(result TestResult)  {}
func (r *JUnitReporter) TestFailed(result TestResult)  {}
func (r *JUnitReporter) TestSkipped(result TestResult) {}

func (r *JUnitReporter) Summary(stats *TestStats) {
	output, err := xml.MarshalIndent(JUnitTestSuites{TestSuites: r.testSuites}, "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, "Error generating JUnit XML output: %v\n", err)
		return
	}
	fmt.Fprint(r.out, xml.Header)
	fmt.Fprintln(r.out, string(output))
}
