// Package host provides the intrinsic function library and the objects a
// script reaches through WScript and CreateObject: dictionaries, the file
// system, the shell, ADODB database access and console dialogs.
package host

import (
	"bufio"
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fortio.org/log"
	"golang.org/x/text/language"

	"vbscript/internal/database"
	"vbscript/internal/errors"
	"vbscript/internal/interp"
	"vbscript/internal/variant"
)

// Host is the environment one run sees. It is not safe for concurrent use;
// each run gets its own Host.
type Host struct {
	out         io.Writer
	in          *bufio.Reader
	interactive bool
	script      string
	args        []string
	locale      language.Tag
	db          *database.Manager
	ownDB       bool
	connections map[string]string
	allowShell  bool
	ctx         context.Context
	now         func() time.Time

	rnd     *rand.Rand
	lastRnd float64
	cwd     string
	env     map[string]string
	streams []*textStream
}

// Option configures a Host.
type Option func(*Host)

// WithOutput directs Echo, MsgBox and StdOut.
func WithOutput(w io.Writer) Option { return func(h *Host) { h.out = w } }

// WithInput supplies StdIn, InputBox and MsgBox answers. interactive
// selects whether dialogs wait for an answer or take their default.
func WithInput(r io.Reader, interactive bool) Option {
	return func(h *Host) {
		h.in = bufio.NewReader(r)
		h.interactive = interactive
	}
}

// WithScript names the running script and its command line arguments.
func WithScript(path string, args []string) Option {
	return func(h *Host) {
		h.script = path
		h.args = args
	}
}

// WithLocale selects the locale for MonthName, WeekdayName and the
// currency and percent formats.
func WithLocale(tag language.Tag) Option { return func(h *Host) { h.locale = tag } }

// WithDatabase shares a connection manager between runs.
func WithDatabase(m *database.Manager) Option { return func(h *Host) { h.db = m } }

// WithConnections makes named connection strings available to
// ADODB.Connection.Open.
func WithConnections(named map[string]string) Option {
	return func(h *Host) { h.connections = named }
}

// WithShell allows WScript.Shell.Run to start processes.
func WithShell(allow bool) Option { return func(h *Host) { h.allowShell = allow } }

// WithContext bounds blocking host calls such as WScript.Sleep and
// database queries.
func WithContext(ctx context.Context) Option { return func(h *Host) { h.ctx = ctx } }

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(h *Host) { h.now = now } }

func New(opts ...Option) *Host {
	h := &Host{
		out:        os.Stdout,
		in:         bufio.NewReader(os.Stdin),
		locale:     language.AmericanEnglish,
		allowShell: true,
		ctx:        context.Background(),
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.db == nil {
		h.db = database.NewManager()
		h.ownDB = true
	}
	h.lastRnd = h.rnd.Float64()
	h.cwd, _ = os.Getwd()
	return h
}

// Close flushes text streams the script left open and releases
// connections the host opened itself.
func (h *Host) Close() error {
	var first error
	for _, ts := range h.streams {
		if err := ts.close(); err != nil && first == nil {
			first = err
		}
	}
	h.streams = nil
	if h.ownDB {
		if err := h.db.CloseAll(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Registry returns a registry holding the whole library.
func (h *Host) Registry() *interp.Registry {
	reg := interp.NewRegistry()
	h.Register(reg)
	return reg
}

// Register installs the intrinsic functions, the vb* constants and the
// WScript object into reg.
func (h *Host) Register(reg *interp.Registry) {
	registerConstants(reg)
	register(reg, stringFuncs)
	register(reg, mathFuncs(h))
	register(reg, conversionFuncs)
	register(reg, inspectionFuncs)
	register(reg, arrayFuncs)
	register(reg, dateFuncs(h))
	register(reg, formatFuncs(h))
	register(reg, []builtin{
		{"CreateObject", 1, 2, func(args []variant.Variant) (variant.Variant, error) {
			return h.CreateObject(variant.ToString(args[0]))
		}},
		{"GetObject", 0, 2, h.getObject},
		{"MsgBox", 1, 5, h.msgBox},
		{"InputBox", 1, 7, h.inputBox},
	})
	reg.RegisterObject("WScript", &wscript{h: h})
}

// CreateObject instantiates a host object by ProgID.
func (h *Host) CreateObject(progID string) (variant.Variant, error) {
	log.LogVf("CreateObject(%q)", progID)
	var obj variant.Object
	switch strings.ToLower(strings.TrimSpace(progID)) {
	case "scripting.dictionary":
		obj = newDictionary()
	case "scripting.filesystemobject":
		obj = &fileSystem{h: h}
	case "wscript.shell":
		obj = &shell{h: h}
	case "adodb.connection":
		obj = &connection{h: h}
	case "adodb.recordset":
		obj = &recordset{h: h}
	case "scriptlet.typelib":
		obj = newTypeLib()
	default:
		return variant.Empty(), errors.Newf(errors.CannotCreateObject, "ActiveX component can't create object: '%s'", progID)
	}
	return variant.ObjectOf(obj), nil
}

// getObject implements GetObject([path][, class]). A class name creates
// the object; a folder or file path returns its FileSystemObject view.
func (h *Host) getObject(args []variant.Variant) (variant.Variant, error) {
	path, class := optString(args, 0, ""), optString(args, 1, "")
	if class != "" {
		return h.CreateObject(class)
	}
	if path == "" {
		return variant.Empty(), errors.New(errors.CannotCreateObject, "")
	}
	abs := h.resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		return variant.Empty(), errors.Newf(errors.FileNotFound, "File not found: '%s'", path)
	}
	if info.IsDir() {
		return variant.ObjectOf(&folder{h: h, path: abs}), nil
	}
	return variant.ObjectOf(&file{h: h, path: abs}), nil
}

// resolve makes path absolute against the shell's current directory.
func (h *Host) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(h.cwd, path)
}

func (h *Host) nowLocal() time.Time {
	t := h.now()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
