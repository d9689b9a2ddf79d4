package host

import (
	"fmt"
	"strings"
	"time"

	"fortio.org/log"

	"vbscript/internal/database"
	"vbscript/internal/errors"
	"vbscript/internal/variant"
)

// Values of the State property.
const (
	adStateClosed = 0
	adStateOpen   = 1
)

// rowKeywords start statements that produce a result set.
var rowKeywords = []string{"select", "with", "pragma", "show", "values", "explain", "describe", "desc"}

func returnsRows(query string) bool {
	q := strings.ToLower(strings.TrimLeft(query, " \t\r\n("))
	for _, kw := range rowKeywords {
		if strings.HasPrefix(q, kw) && (len(q) == len(kw) || !isWordByte(q[len(kw)])) {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// connection is ADODB.Connection over the host's database manager.
type connection struct {
	h       *Host
	connStr string
	id      string
}

func (c *connection) TypeName() string { return "Connection" }

// resolveConnection accepts the name of a configured connection or an ADO
// connection string.
func (h *Host) resolveConnection(connStr string) (kind, dsn string, err error) {
	if named, ok := h.connections[strings.TrimSpace(connStr)]; ok {
		connStr = named
	}
	return database.ParseConnectionString(connStr)
}

func (c *connection) open(connStr string) error {
	if c.id != "" {
		return errors.New(errors.InvalidCall, "Operation is not allowed when the object is open")
	}
	kind, dsn, err := c.h.resolveConnection(connStr)
	if err != nil {
		return errors.FromHost("Connection.Open", err)
	}
	id, err := c.h.db.Open(c.h.ctx, kind, dsn)
	if err != nil {
		return errors.FromHost("Connection.Open", err)
	}
	c.connStr, c.id = connStr, id
	log.LogVf("ADODB.Connection opened %s as %s", kind, id)
	return nil
}

func (c *connection) requireOpen() error {
	if c.id == "" {
		return errors.New(errors.ObjectClosed, "")
	}
	return nil
}

// execute runs query and returns an open recordset for row-producing
// statements, a closed one otherwise, with the rows affected.
func (c *connection) execute(query string) (*recordset, int64, error) {
	if err := c.requireOpen(); err != nil {
		return nil, 0, err
	}
	rs := &recordset{h: c.h}
	if returnsRows(query) {
		rows, err := c.h.db.Query(c.h.ctx, c.id, query)
		if err != nil {
			return nil, 0, errors.FromHost("Connection.Execute", err)
		}
		rs.load(rows)
		return rs, -1, nil
	}
	n, err := c.h.db.Exec(c.h.ctx, c.id, query)
	if err != nil {
		return nil, 0, errors.FromHost("Connection.Execute", err)
	}
	return rs, n, nil
}

func (c *connection) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	name := strings.ToLower(member)
	if name != "connectionstring" {
		if err := readOnly("Connection", member, mode); err != nil {
			return variant.Empty(), err
		}
	}
	switch name {
	case "open":
		if err := arity("Connection.Open", args, 0, 4); err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), c.open(optString(args, 0, c.connStr))
	case "connectionstring", "":
		if mode == variant.InvokeSet {
			c.connStr = variant.ToString(value(args))
			return variant.Empty(), nil
		}
		return variant.String(c.connStr), nil
	case "execute":
		if err := arity("Connection.Execute", args, 1, 3); err != nil {
			return variant.Empty(), err
		}
		rs, _, err := c.execute(variant.ToString(args[0]))
		if err != nil {
			return variant.Empty(), err
		}
		return variant.ObjectOf(rs), nil
	case "state":
		if c.id == "" {
			return variant.Integer(adStateClosed), nil
		}
		return variant.Integer(adStateOpen), nil
	case "close":
		if err := c.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		id := c.id
		c.id = ""
		if err := c.h.db.Close(id); err != nil {
			return variant.Empty(), errors.FromHost("Connection.Close", err)
		}
		return variant.Empty(), nil
	case "begintrans":
		if err := c.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		if err := c.h.db.Begin(c.h.ctx, c.id); err != nil {
			return variant.Empty(), errors.FromHost("Connection.BeginTrans", err)
		}
		return variant.Integer(1), nil
	case "committrans", "rollbacktrans":
		if err := c.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		finish := c.h.db.Commit
		if name == "rollbacktrans" {
			finish = c.h.db.Rollback
		}
		if err := finish(c.id); err != nil {
			return variant.Empty(), errors.FromHost("Connection."+member, err)
		}
		return variant.Empty(), nil
	}
	return variant.Empty(), unsupported("Connection", member)
}

// recordset is ADODB.Recordset, a fully read, forward and backward
// scrollable result set.
type recordset struct {
	h       *Host
	columns []string
	rows    [][]variant.Variant
	pos     int
	open    bool
}

func (r *recordset) TypeName() string { return "Recordset" }

func (r *recordset) load(rows *database.Rows) {
	r.columns = rows.Columns
	r.rows = make([][]variant.Variant, len(rows.Values))
	for i, row := range rows.Values {
		r.rows[i] = make([]variant.Variant, len(row))
		for j, v := range row {
			r.rows[i][j] = fromSQL(v)
		}
	}
	r.pos = 0
	r.open = true
}

// fromSQL converts a value scanned by database/sql.
func fromSQL(v interface{}) variant.Variant {
	switch x := v.(type) {
	case nil:
		return variant.Null()
	case int64:
		return variant.Int(x)
	case int32:
		return variant.Int(int64(x))
	case float64:
		return variant.Double(x)
	case float32:
		return variant.Double(float64(x))
	case bool:
		return variant.Bool(x)
	case string:
		return variant.String(x)
	case []byte:
		return variant.String(string(x))
	case time.Time:
		return variant.Date(time.Date(x.Year(), x.Month(), x.Day(), x.Hour(), x.Minute(), x.Second(), 0, time.UTC))
	}
	return variant.String(fmt.Sprint(v))
}

func (r *recordset) eof() bool { return r.pos >= len(r.rows) }

func (r *recordset) bof() bool { return r.pos < 0 || len(r.rows) == 0 }

func (r *recordset) requireOpen() error {
	if !r.open {
		return errors.New(errors.ObjectClosed, "")
	}
	return nil
}

func (r *recordset) field(key variant.Variant) (variant.Variant, error) {
	if err := r.requireOpen(); err != nil {
		return variant.Empty(), err
	}
	col := -1
	if key.Kind() == variant.KindString {
		for i, name := range r.columns {
			if strings.EqualFold(name, key.Str()) {
				col = i
				break
			}
		}
	} else {
		n, err := toInt(key)
		if err != nil {
			return variant.Empty(), err
		}
		if n >= 0 && n < len(r.columns) {
			col = n
		}
	}
	if col < 0 {
		return variant.Empty(), errors.Newf(errors.ElementNotFound, "Item cannot be found in the collection: '%s'", variant.ToString(key))
	}
	return variant.ObjectOf(&fieldRef{rs: r, col: col}), nil
}

func (r *recordset) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("Recordset", member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "open":
		if err := arity("Recordset.Open", args, 2, 5); err != nil {
			return variant.Empty(), err
		}
		return variant.Empty(), r.openSource(variant.ToString(args[0]), args[1])
	case "", "fields", "collect":
		if len(args) == 0 {
			if err := r.requireOpen(); err != nil {
				return variant.Empty(), err
			}
			return variant.ObjectOf(&fields{rs: r}), nil
		}
		if err := arity("Recordset.Fields", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		f, err := r.field(args[0])
		if err != nil || strings.ToLower(member) != "collect" {
			return f, err
		}
		return f.Object().Invoke("", nil, variant.InvokeGet)
	case "eof":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		return variant.Bool(r.eof()), nil
	case "bof":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		return variant.Bool(r.bof()), nil
	case "movenext":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		if r.eof() {
			return variant.Empty(), errors.New(errors.NoCurrentRecord, "")
		}
		r.pos++
		return variant.Empty(), nil
	case "moveprevious":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		if r.pos < 0 {
			return variant.Empty(), errors.New(errors.NoCurrentRecord, "")
		}
		r.pos--
		return variant.Empty(), nil
	case "movefirst":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		r.pos = 0
		return variant.Empty(), nil
	case "movelast":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		r.pos = len(r.rows) - 1
		if r.pos < 0 {
			r.pos = 0
		}
		return variant.Empty(), nil
	case "recordcount":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		return variant.Int(int64(len(r.rows))), nil
	case "absoluteposition":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		return variant.Int(int64(r.pos + 1)), nil
	case "getrows":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		return r.getRows()
	case "state":
		if r.open {
			return variant.Integer(adStateOpen), nil
		}
		return variant.Integer(adStateClosed), nil
	case "close":
		if err := r.requireOpen(); err != nil {
			return variant.Empty(), err
		}
		r.open, r.rows, r.columns = false, nil, nil
		return variant.Empty(), nil
	}
	return variant.Empty(), unsupported("Recordset", member)
}

// openSource runs query over an open Connection object or a connection
// string, which gets a connection of its own for the duration of the read.
func (r *recordset) openSource(query string, active variant.Variant) error {
	if r.open {
		return errors.New(errors.InvalidCall, "Operation is not allowed when the object is open")
	}
	var conn *connection
	switch {
	case active.IsObject() && !active.IsNothing():
		c, ok := active.Object().(*connection)
		if !ok {
			return errors.New(errors.TypeMismatch, "")
		}
		conn = c
	default:
		conn = &connection{h: r.h}
		if err := conn.open(variant.ToString(active)); err != nil {
			return err
		}
		defer r.h.db.Close(conn.id)
	}
	if !returnsRows(query) {
		query = "SELECT * FROM " + query
	}
	rs, _, err := conn.execute(query)
	if err != nil {
		return err
	}
	*r = *rs
	return nil
}

// getRows returns the remaining rows as a two-dimensional array indexed
// (field, row) and moves to EOF.
func (r *recordset) getRows() (variant.Variant, error) {
	rest := r.rows
	if r.pos > 0 && r.pos <= len(rest) {
		rest = rest[r.pos:]
	}
	if len(rest) == 0 {
		return variant.Empty(), errors.New(errors.NoCurrentRecord, "")
	}
	a, err := variant.NewArray(len(r.columns)-1, len(rest)-1)
	if err != nil {
		return variant.Empty(), err
	}
	for i, row := range rest {
		for j, v := range row {
			if err := a.Set(v, j, i); err != nil {
				return variant.Empty(), err
			}
		}
	}
	r.pos = len(r.rows)
	return variant.ArrayOf(a), nil
}

// fields is Recordset.Fields.
type fields struct {
	rs *recordset
}

func (f *fields) TypeName() string { return "Fields" }

func (f *fields) Enumerate() ([]variant.Variant, error) {
	out := make([]variant.Variant, len(f.rs.columns))
	for i := range f.rs.columns {
		out[i] = variant.ObjectOf(&fieldRef{rs: f.rs, col: i})
	}
	return out, nil
}

func (f *fields) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("Fields", member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "count":
		return variant.Int(int64(len(f.rs.columns))), nil
	case "", "item":
		if err := arity("Fields.Item", args, 1, 1); err != nil {
			return variant.Empty(), err
		}
		return f.rs.field(args[0])
	}
	return variant.Empty(), unsupported("Fields", member)
}

// fieldRef is one Field of the current row. Its default member is Value.
type fieldRef struct {
	rs  *recordset
	col int
}

func (f *fieldRef) TypeName() string { return "Field" }

func (f *fieldRef) Invoke(member string, args []variant.Variant, mode variant.InvokeMode) (variant.Variant, error) {
	if err := readOnly("Field", member, mode); err != nil {
		return variant.Empty(), err
	}
	switch strings.ToLower(member) {
	case "", "value":
		if f.rs.eof() || f.rs.pos < 0 {
			return variant.Empty(), errors.New(errors.NoCurrentRecord, "")
		}
		return f.rs.rows[f.rs.pos][f.col], nil
	case "name":
		return variant.String(f.rs.columns[f.col]), nil
	}
	return variant.Empty(), unsupported("Field", member)
}
