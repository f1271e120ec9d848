package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// initPrefill echoes the database half of an InitRequest back to a setup
// panel so re-running init against an existing config starts pre-filled.
// The password itself never leaves the server, only whether one is set.
type initPrefill struct {
	DatabaseType        string `json:"database_type"`
	DatabaseHost        string `json:"database_host"`
	DatabasePort        int    `json:"database_port"`
	DatabaseUser        string `json:"database_user"`
	DatabaseName        string `json:"database_name"`
	DatabaseSSLMode     string `json:"database_ssl_mode"`
	DatabasePath        string `json:"database_path"`
	DatabasePasswordSet bool   `json:"database_password_set"`
}

func initPrefillFromDSN(dsn string) (initPrefill, error) {
	trimmed := strings.TrimSpace(dsn)
	switch {
	case trimmed == "":
		return initPrefill{}, fmt.Errorf("empty dsn")
	case strings.HasPrefix(strings.ToLower(trimmed), "file:"):
		return sqlitePrefill(trimmed), nil
	default:
		return postgresPrefill(trimmed)
	}
}

// sqlitePrefill extracts the database file path from a sqlite DSN.
func sqlitePrefill(dsn string) initPrefill {
	path := dsn[len("file:"):]
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	return initPrefill{
		DatabaseType: "sqlite",
		DatabasePath: strings.TrimSpace(path),
	}
}

// postgresPrefill splits a postgres URL DSN into the setup form fields.
func postgresPrefill(dsn string) (initPrefill, error) {
	u, errParse := url.Parse(dsn)
	if errParse != nil {
		return initPrefill{}, fmt.Errorf("parse dsn: %w", errParse)
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
	default:
		return initPrefill{}, fmt.Errorf("unsupported dsn scheme")
	}

	prefill := initPrefill{
		DatabaseType:    "postgres",
		DatabaseHost:    strings.TrimSpace(u.Hostname()),
		DatabasePort:    5432,
		DatabaseName:    strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
		DatabaseSSLMode: "disable",
	}
	if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
		port, errPort := strconv.Atoi(rawPort)
		if errPort != nil {
			return initPrefill{}, fmt.Errorf("parse port: %w", errPort)
		}
		prefill.DatabasePort = port
	}
	if u.User != nil {
		prefill.DatabaseUser = strings.TrimSpace(u.User.Username())
		_, prefill.DatabasePasswordSet = u.User.Password()
	}
	if sslMode := strings.TrimSpace(u.Query().Get("sslmode")); sslMode != "" {
		prefill.DatabaseSSLMode = sslMode
	}
	return prefill, nil
}
