package database

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ParseConnectionString turns an ADO style connection string
// ("Provider=...;Data Source=...;User Id=...") into a driver alias and a
// DSN in that driver's own format. A "DSN=" key is passed through as is.
func ParseConnectionString(connStr string) (kind, dsn string, err error) {
	params := make(map[string]string)
	for _, part := range strings.Split(connStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return "", "", fmt.Errorf("malformed connection string element %q", part)
		}
		params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	kind = providerKind(first(params, "driver", "provider"))
	if kind == "" {
		return "", "", fmt.Errorf("connection string names no known provider: %q", connStr)
	}
	if raw, ok := params["dsn"]; ok {
		return kind, raw, nil
	}

	host := first(params, "server", "host", "data source", "address")
	port := first(params, "port")
	db := first(params, "database", "initial catalog", "dbname")
	user := first(params, "user id", "uid", "user", "username")
	pass := first(params, "password", "pwd")

	switch kind {
	case "sqlite", "sqlite3":
		dsn = first(params, "data source", "database", "file")
		if dsn == "" {
			dsn = ":memory:"
		}
	case "postgres":
		var sb strings.Builder
		for _, kv := range [][2]string{{"host", host}, {"port", port}, {"dbname", db}, {"user", user}, {"password", pass}} {
			if kv[1] != "" {
				fmt.Fprintf(&sb, "%s=%s ", kv[0], kv[1])
			}
		}
		sb.WriteString("sslmode=" + orDefault(params["sslmode"], "disable"))
		dsn = sb.String()
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = user
		cfg.Passwd = pass
		cfg.Net = "tcp"
		cfg.Addr = hostPort(host, port, "3306")
		cfg.DBName = db
		dsn = cfg.FormatDSN()
	case "sqlserver":
		u := &url.URL{Scheme: "sqlserver", Host: hostPort(host, port, "1433")}
		if user != "" {
			u.User = url.UserPassword(user, pass)
		}
		if db != "" {
			u.RawQuery = url.Values{"database": {db}}.Encode()
		}
		dsn = u.String()
	}
	return kind, dsn, nil
}

// providerKind maps OLE DB provider and ODBC driver names to driver aliases.
func providerKind(provider string) string {
	p := strings.ToLower(strings.Trim(provider, "{}"))
	switch {
	case p == "":
		return ""
	case strings.Contains(p, "sqlite3"):
		return "sqlite3"
	case strings.Contains(p, "sqlite"):
		return "sqlite"
	case strings.Contains(p, "postgres"), strings.Contains(p, "pgsql"), strings.Contains(p, "npgsql"):
		return "postgres"
	case strings.Contains(p, "mysql"), strings.Contains(p, "mariadb"):
		return "mysql"
	case strings.Contains(p, "sqloledb"), strings.Contains(p, "sqlncli"), strings.Contains(p, "msoledbsql"),
		strings.Contains(p, "sql server"), strings.Contains(p, "sqlserver"), strings.Contains(p, "mssql"):
		return "sqlserver"
	}
	if _, ok := drivers[p]; ok {
		return p
	}
	return ""
}

func first(params map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func hostPort(host, port, def string) string {
	if host == "" {
		host = "localhost"
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		return net.JoinHostPort(h, p)
	}
	if port == "" {
		port = def
	}
	return net.JoinHostPort(host, port)
}
