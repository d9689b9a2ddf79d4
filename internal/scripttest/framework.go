// Package scripttest runs script test files for `vbscript test`. A test
// file is named *_test.vbs; every Sub whose name starts with Test is a test
// case. Optional Setup and Teardown Subs run around each case, and each case
// gets a fresh host and environment.
package scripttest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fortio.org/log"

	"vbscript/internal/errors"
	"vbscript/internal/host"
	"vbscript/internal/interp"
	"vbscript/internal/parser"
	"vbscript/internal/source"
	"vbscript/internal/variant"
)

// Pattern matches test file names.
const Pattern = "*_test.vbs"

// TestResult is the outcome of one test case.
type TestResult struct {
	Name     string
	File     string
	Passed   bool
	Failed   bool
	Skipped  bool
	Duration time.Duration
	Error    error
	Message  string
	Output   string
}

// TestSuite is one test file.
type TestSuite struct {
	Name      string
	File      string
	Tests     []string
	Setup     bool
	Teardown  bool
	Results   []TestResult
	StartTime time.Time
	EndTime   time.Time

	prog *parser.Program
}

type TestConfig struct {
	Verbose      bool
	Filter       string
	Timeout      time.Duration
	FailFast     bool
	OutputFormat string // "text", "json" or "junit"
	Color        bool

	// HostOptions are applied to the host of every test case, after the
	// runner's own output and input settings.
	HostOptions []host.Option
	// InterpOptions are applied to every test's session.
	InterpOptions []interp.Option
}

// TestStats totals a run.
type TestStats struct {
	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int
	TotalTime    time.Duration
	Suites       int
}

// TestReporter receives results as the runner produces them.
type TestReporter interface {
	StartSuite(suite *TestSuite)
	EndSuite(suite *TestSuite)
	TestPassed(result TestResult)
	TestFailed(result TestResult)
	TestSkipped(result TestResult)
	Summary(stats *TestStats)
}

type TestRunner struct {
	suites   []*TestSuite
	config   *TestConfig
	reporter TestReporter
	stats    *TestStats
}

// NewTestRunner creates a runner reporting to out in the configured format.
func NewTestRunner(config *TestConfig, out io.Writer) *TestRunner {
	if config == nil {
		config = &TestConfig{Timeout: 30 * time.Second, OutputFormat: "text"}
	}
	var reporter TestReporter
	switch config.OutputFormat {
	case "json":
		reporter = NewJSONReporter(out)
	case "junit":
		reporter = NewJUnitReporter(out)
	default:
		reporter = NewTextReporter(out, config.Verbose, config.Color)
	}
	return &TestRunner{config: config, reporter: reporter, stats: &TestStats{}}
}

// LoadSuite parses a test file and lists its test procedures in source
// order.
func LoadSuite(path string) (*TestSuite, error) {
	text, _, err := source.Load(path)
	if err != nil {
		return nil, err
	}
	prog, err := parser.ParseFile(path, text)
	if err != nil {
		return nil, err
	}
	suite := &TestSuite{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		File: path,
		prog: prog,
	}
	for _, proc := range prog.Procs {
		switch name := strings.ToLower(proc.Name); {
		case name == "setup":
			suite.Setup = true
		case name == "teardown":
			suite.Teardown = true
		case strings.HasPrefix(name, "test") && !proc.IsFunction && len(proc.Params) == 0:
			suite.Tests = append(suite.Tests, proc.Name)
		}
	}
	return suite, nil
}

func (r *TestRunner) AddSuite(suite *TestSuite) {
	r.suites = append(r.suites, suite)
}

// Run executes all suites and reports the totals.
func (r *TestRunner) Run(ctx context.Context) *TestStats {
	startTime := time.Now()
	for _, suite := range r.suites {
		r.runSuite(ctx, suite)
		if r.config.FailFast && r.hasFailures(suite) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	r.stats.TotalTime = time.Since(startTime)
	r.reporter.Summary(r.stats)
	return r.stats
}

func (r *TestRunner) runSuite(ctx context.Context, suite *TestSuite) {
	suite.StartTime = time.Now()
	r.reporter.StartSuite(suite)
	for _, name := range suite.Tests {
		if !r.shouldRunTest(name) {
			result := TestResult{Name: name, File: suite.File, Skipped: true, Message: "filtered out"}
			suite.Results = append(suite.Results, result)
			r.reporter.TestSkipped(result)
			continue
		}
		result := r.runTest(ctx, suite, name)
		suite.Results = append(suite.Results, result)
		switch {
		case result.Skipped:
			r.reporter.TestSkipped(result)
		case result.Failed:
			r.reporter.TestFailed(result)
		default:
			r.reporter.TestPassed(result)
		}
		if r.config.FailFast && result.Failed {
			break
		}
	}
	suite.EndTime = time.Now()
	r.reporter.EndSuite(suite)
	r.updateStats(suite)
}

// runTest runs the file's top level, Setup, the test and Teardown in a
// fresh session. Teardown runs even when the test faults.
func (r *TestRunner) runTest(ctx context.Context, suite *TestSuite, name string) TestResult {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}
	var out bytes.Buffer
	opts := append([]host.Option{
		host.WithOutput(&out),
		host.WithInput(strings.NewReader(""), false),
		host.WithScript(suite.File, nil),
	}, r.config.HostOptions...)
	opts = append(opts, host.WithContext(ctx))
	h := host.New(opts...)
	defer h.Close()

	tc := &TestContext{}
	reg := h.Registry()
	tc.register(reg)
	session := interp.NewSession(reg, append([]interp.Option{interp.WithFile(suite.File)}, r.config.InterpOptions...)...)

	start := time.Now()
	err := exec(ctx, session, suite.prog)
	if err == nil && suite.Setup {
		err = call(ctx, session, "Setup")
	}
	if err == nil {
		err = call(ctx, session, name)
	}
	if suite.Teardown {
		if terr := call(ctx, session, "Teardown"); err == nil {
			err = terr
		}
	}
	result := TestResult{
		Name:     name,
		File:     suite.File,
		Duration: time.Since(start),
		Output:   out.String(),
	}
	if tc.skipped != "" {
		result.Skipped = true
		result.Message = tc.skipped
		return result
	}
	if err != nil || len(tc.failures) > 0 {
		result.Failed = true
		result.Error = err
		result.Message = strings.Join(tc.failures, "\n")
		log.LogVf("%s %s failed", suite.Name, name)
		return result
	}
	result.Passed = true
	return result
}

func exec(ctx context.Context, s *interp.Session, prog *parser.Program) error {
	if res := s.Exec(ctx, prog); !res.Completed() {
		return res.Err
	}
	return nil
}

func call(ctx context.Context, s *interp.Session, proc string) error {
	prog, err := parser.ParseSource(proc)
	if err != nil {
		return err
	}
	return exec(ctx, s, prog)
}

func (r *TestRunner) shouldRunTest(name string) bool {
	return r.config.Filter == "" || strings.Contains(strings.ToLower(name), strings.ToLower(r.config.Filter))
}

func (r *TestRunner) hasFailures(suite *TestSuite) bool {
	for _, result := range suite.Results {
		if result.Failed {
			return true
		}
	}
	return false
}

func (r *TestRunner) updateStats(suite *TestSuite) {
	r.stats.Suites++
	for _, result := range suite.Results {
		r.stats.TotalTests++
		switch {
		case result.Passed:
			r.stats.PassedTests++
		case result.Failed:
			r.stats.FailedTests++
		case result.Skipped:
			r.stats.SkippedTests++
		}
	}
}

// TestContext collects what a test case reports through the assertion
// functions. Failed assertions do not stop the test.
type TestContext struct {
	assertions int
	failures   []string
	skipped    string
}

func (tc *TestContext) register(reg *interp.Registry) {
	reg.RegisterFunc("Assert", tc.assertTrue)
	reg.RegisterFunc("AssertTrue", tc.assertTrue)
	reg.RegisterFunc("AssertFalse", tc.assertFalse)
	reg.RegisterFunc("AssertEqual", tc.assertEqual)
	reg.RegisterFunc("AssertNotEqual", tc.assertNotEqual)
	reg.RegisterFunc("Fail", tc.fail)
	reg.RegisterFunc("Skip", tc.skip)
}

func message(args []variant.Variant, at int) string {
	if len(args) > at {
		return variant.ToString(args[at])
	}
	return ""
}

func arity(name string, args []variant.Variant, min, max int) error {
	if len(args) < min || len(args) > max {
		return errors.Newf(errors.ArgumentCount, "Wrong number of arguments or invalid property assignment: '%s'", name)
	}
	return nil
}

func (tc *TestContext) check(ok bool, format string, args ...interface{}) (variant.Variant, error) {
	tc.assertions++
	if !ok {
		tc.failures = append(tc.failures, fmt.Sprintf(format, args...))
	}
	return variant.Bool(ok), nil
}

func (tc *TestContext) assertTrue(args []variant.Variant) (variant.Variant, error) {
	if err := arity("Assert", args, 1, 2); err != nil {
		return variant.Empty(), err
	}
	return tc.check(variant.Truthy(args[0]), "Assert failed: %s", message(args, 1))
}

func (tc *TestContext) assertFalse(args []variant.Variant) (variant.Variant, error) {
	if err := arity("AssertFalse", args, 1, 2); err != nil {
		return variant.Empty(), err
	}
	return tc.check(!variant.Truthy(args[0]), "AssertFalse failed: %s", message(args, 1))
}

func (tc *TestContext) assertEqual(args []variant.Variant) (variant.Variant, error) {
	if err := arity("AssertEqual", args, 2, 3); err != nil {
		return variant.Empty(), err
	}
	eq, _ := variant.Equal(args[0], args[1])
	return tc.check(eq, "AssertEqual failed: %s\nExpected: %s\nActual: %s",
		message(args, 2), describe(args[0]), describe(args[1]))
}

func (tc *TestContext) assertNotEqual(args []variant.Variant) (variant.Variant, error) {
	if err := arity("AssertNotEqual", args, 2, 3); err != nil {
		return variant.Empty(), err
	}
	eq, _ := variant.Equal(args[0], args[1])
	return tc.check(!eq, "AssertNotEqual failed: %s\nValues are equal: %s", message(args, 2), describe(args[0]))
}

func (tc *TestContext) fail(args []variant.Variant) (variant.Variant, error) {
	tc.failures = append(tc.failures, "Test failed: "+message(args, 0))
	return variant.Empty(), nil
}

// skip stops the test. The fault it raises cannot be absorbed by On Error
// Resume Next.
func (tc *TestContext) skip(args []variant.Variant) (variant.Variant, error) {
	tc.skipped = message(args, 0)
	if tc.skipped == "" {
		tc.skipped = "skipped"
	}
	return variant.Empty(), errors.New(errors.Interrupted, "test skipped")
}

func describe(v variant.Variant) string {
	if v.Kind() == variant.KindString {
		return fmt.Sprintf("%q", v.Str())
	}
	return fmt.Sprintf("%s (%s)", variant.ToString(v), variant.TypeName(v))
}

// DiscoverTests finds test files under dir, sorted by path.
func DiscoverTests(dir string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(Pattern, strings.ToLower(d.Name())); ok {
			matches = append(matches, path)
		}
		return nil
	})
	sort.Strings(matches)
	return matches, err
}
