// Package server runs scripts sent over a websocket. Each connection may
// have several runs in flight; a shared pool of workers bounds how many
// execute at once across all connections.
package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"fortio.org/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"vbscript/internal/database"
	"vbscript/internal/errors"
	"vbscript/internal/host"
	"vbscript/internal/interp"
	"vbscript/internal/parser"
)

// Request types sent by clients.
const (
	TypeRun    = "run"
	TypeCancel = "cancel"
)

// Response types sent by the server.
const (
	TypeAccepted = "accepted"
	TypeOutput   = "output"
	TypeResult   = "result"
	TypeError    = "error"
)

type Request struct {
	Type   string   `json:"type"`
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Source string   `json:"source,omitempty"`
	Args   []string `json:"args,omitempty"`
	Input  string   `json:"input,omitempty"`
}

type Response struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Text      string `json:"text,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	ExitCode  int    `json:"exitCode"`
	Error     *Fault `json:"error,omitempty"`
}

// Fault is a script error as reported to clients.
type Fault struct {
	Kind        string `json:"kind"`
	Number      int    `json:"number"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
	Line        int    `json:"line,omitempty"`
}

func faultOf(se *errors.ScriptError) *Fault {
	if se == nil {
		return nil
	}
	return &Fault{
		Kind:        string(se.Kind),
		Number:      se.Number,
		Description: se.Message,
		Source:      se.Origin,
		Line:        se.Line(),
	}
}

type Options struct {
	Workers      int
	Timeout      time.Duration
	MaxCallDepth int
	Explicit     bool
	AllowShell   bool
	Locale       language.Tag
	Connections  map[string]string
}

type Server struct {
	opts     Options
	db       *database.Manager
	upgrader websocket.Upgrader
	workers  chan struct{}
	mux      *http.ServeMux
}

func New(opts Options) *Server {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	s := &Server{
		opts:    opts,
		db:      database.NewManager(),
		workers: make(chan struct{}, opts.Workers),
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("/run", s.handleRun)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("serving on %s with %d workers", addr, s.opts.Workers)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	err := g.Wait()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the database connections scripts left open.
func (s *Server) Close() error { return s.db.CloseAll() }

// client is one websocket connection. Writes from concurrent runs are
// serialized by mu.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex

	runsMu sync.Mutex
	runs   map[string]context.CancelFunc
}

func (c *client) send(resp Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(resp)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	c := &client{conn: conn, runs: make(map[string]context.CancelFunc)}
	log.LogVf("client %s connected", r.RemoteAddr)

	g, ctx := errgroup.WithContext(r.Context())
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.LogVf("client %s: %v", r.RemoteAddr, err)
			}
			break
		}
		switch req.Type {
		case TypeRun:
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			runCtx, cancel := context.WithCancel(ctx)
			if !c.track(req.ID, cancel) {
				cancel()
				c.send(Response{Type: TypeError, ID: req.ID, Text: "run id already in use"})
				continue
			}
			req := req
			g.Go(func() error {
				defer c.untrack(req.ID)
				defer cancel()
				return s.execute(runCtx, c, req)
			})
		case TypeCancel:
			if !c.cancel(req.ID) {
				c.send(Response{Type: TypeError, ID: req.ID, Text: "no such run"})
			}
		default:
			c.send(Response{Type: TypeError, ID: req.ID, Text: "unknown request type " + req.Type})
		}
	}
	c.cancelAll()
	if err := g.Wait(); err != nil {
		log.LogVf("client %s: %v", r.RemoteAddr, err)
	}
}

func (c *client) track(id string, cancel context.CancelFunc) bool {
	c.runsMu.Lock()
	defer c.runsMu.Unlock()
	if _, ok := c.runs[id]; ok {
		return false
	}
	c.runs[id] = cancel
	return true
}

func (c *client) untrack(id string) {
	c.runsMu.Lock()
	defer c.runsMu.Unlock()
	delete(c.runs, id)
}

func (c *client) cancel(id string) bool {
	c.runsMu.Lock()
	defer c.runsMu.Unlock()
	cancel, ok := c.runs[id]
	if ok {
		cancel()
	}
	return ok
}

func (c *client) cancelAll() {
	c.runsMu.Lock()
	defer c.runsMu.Unlock()
	for _, cancel := range c.runs {
		cancel()
	}
}

// execute parses and runs one request on a worker, streaming output as it
// is produced. Only a failure to write to the client is returned.
func (s *Server) execute(ctx context.Context, c *client, req Request) error {
	name := req.Name
	if name == "" {
		name = "run-" + req.ID
		if len(req.ID) > 8 {
			name = "run-" + req.ID[:8]
		}
	}
	prog, err := parser.ParseFile(name, req.Source)
	if err != nil {
		se, _ := errors.As(err)
		return c.send(Response{Type: TypeResult, ID: req.ID, Error: faultOf(se)})
	}

	select {
	case s.workers <- struct{}{}:
	case <-ctx.Done():
		return c.send(Response{Type: TypeResult, ID: req.ID, Error: faultOf(errors.New(errors.Interrupted, "cancelled before start"))})
	}
	defer func() { <-s.workers }()

	if err := c.send(Response{Type: TypeAccepted, ID: req.ID}); err != nil {
		return err
	}
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	out := &outputWriter{c: c, id: req.ID}
	h := host.New(
		host.WithOutput(out),
		host.WithInput(strings.NewReader(req.Input), false),
		host.WithScript(name, req.Args),
		host.WithLocale(s.opts.Locale),
		host.WithDatabase(s.db),
		host.WithConnections(s.opts.Connections),
		host.WithShell(s.opts.AllowShell),
		host.WithContext(ctx),
	)
	defer h.Close()

	start := time.Now()
	res := interp.New(prog, h.Registry(),
		interp.WithFile(name),
		interp.WithMaxCallDepth(s.opts.MaxCallDepth),
		interp.WithExplicit(s.opts.Explicit),
	).Run(ctx)
	log.LogVf("run %s finished in %v, completed=%v", req.ID, time.Since(start), res.Completed())

	if out.err != nil {
		return out.err
	}
	return c.send(Response{
		Type:      TypeResult,
		ID:        req.ID,
		Completed: res.Completed(),
		ExitCode:  res.ExitCode,
		Error:     faultOf(res.Err),
	})
}

// outputWriter forwards script output as output messages. The first write
// error is kept and later writes are dropped.
type outputWriter struct {
	c   *client
	id  string
	err error
}

func (w *outputWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.err = w.c.send(Response{Type: TypeOutput, ID: w.id, Text: string(p)})
	if w.err != nil {
		return 0, w.err
	}
	return len(p), nil
}
