package schema

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	xerrors "Snowz-Migrator/internal/errors"
)

// Dialect 表示目标数据库的 SQL 方言。
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectMariaDB  Dialect = "mariadb"
	DialectPostgres Dialect = "postgresql"
	DialectSQLite   Dialect = "sqlite"
	DialectH2       Dialect = "h2"
)

// mysqlFamily 表示方言是否使用 MySQL 的语法与元数据命令。
func (d Dialect) mysqlFamily() bool {
	return d == DialectMySQL || d == DialectMariaDB
}

// Connection 是解析连接串后的结果。
type Connection struct {
	Dialect    Dialect
	DriverName string
	DSN        string
}

// ParseConnectionString 解析 jdbc:<子协议>:... 形式的连接串。
func ParseConnectionString(cs string) (Connection, error) {
	parts := strings.SplitN(strings.TrimSpace(cs), ":", 3)
	if len(parts) < 3 || parts[0] != "jdbc" {
		return Connection{}, invalidConnection(cs)
	}
	rest := parts[2]
	var conn Connection

	switch parts[1] {
	case "mysql", "mariadb":
		dsn, err := mysqlDSN(rest)
		if err != nil {
			return Connection{}, xerrors.Wrap(xerrors.CodeConnectionStringInvalid, err, cs+" is not valid")
		}
		conn.Dialect = Dialect(parts[1])
		conn.DriverName = "mysql"
		conn.DSN = dsn
	case "postgresql":
		dsn, err := postgresDSN(rest)
		if err != nil {
			return Connection{}, xerrors.Wrap(xerrors.CodeConnectionStringInvalid, err, cs+" is not valid")
		}
		conn.Dialect = DialectPostgres
		conn.DriverName = "postgres"
		conn.DSN = dsn
	case "sqlite":
		conn.Dialect = DialectSQLite
		conn.DriverName = "sqlite"
		conn.DSN = rest
	case "h2":
		conn.Dialect = DialectH2
	default:
		return Connection{}, invalidConnection(cs)
	}
	return conn, nil
}

func invalidConnection(cs string) error {
	return xerrors.New(xerrors.CodeConnectionStringInvalid, cs+" is not valid")
}

// mysqlDSN 将 //user:pass@host:port/db?user=..&password=.. 转换为 go-sql-driver 的 DSN。
func mysqlDSN(rest string) (string, error) {
	if !strings.HasPrefix(rest, "//") {
		return "", fmt.Errorf("expected //host/database, got %q", rest)
	}
	u, err := url.Parse("mysql:" + rest)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true

	query := u.Query()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if user := query.Get("user"); user != "" {
		cfg.User = user
	}
	if password := query.Get("password"); password != "" {
		cfg.Passwd = password
	}
	if charset := query.Get("characterEncoding"); charset != "" {
		cfg.Params = map[string]string{"charset": jdbcCharset(charset)}
	}
	return cfg.FormatDSN(), nil
}

// postgresDSN 将 //host:port/db?.. 转换为 lib/pq 的 URL，只保留 lib/pq 认识的参数。
// lib/pq 默认 sslmode=require，而 JDBC 默认不要求 SSL，未指定 sslmode 时按 ssl 参数推导。
func postgresDSN(rest string) (string, error) {
	if !strings.HasPrefix(rest, "//") {
		return "", fmt.Errorf("expected //host/database, got %q", rest)
	}
	u, err := url.Parse("postgres:" + rest)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	query := u.Query()
	kept := url.Values{}
	for _, key := range []string{"user", "password", "sslmode", "sslcert", "sslkey", "sslrootcert", "connect_timeout", "application_name"} {
		if v := query.Get(key); v != "" {
			kept.Set(key, v)
		}
	}
	switch kept.Get("sslmode") {
	case "allow", "prefer":
		// lib/pq 不支持回退到明文连接。
		kept.Set("sslmode", "disable")
	case "":
		if strings.EqualFold(query.Get("ssl"), "true") {
			kept.Set("sslmode", "require")
		} else {
			kept.Set("sslmode", "disable")
		}
	}
	if kept.Get("application_name") == "" && query.Get("ApplicationName") != "" {
		kept.Set("application_name", query.Get("ApplicationName"))
	}

	u.RawQuery = kept.Encode()
	return u.String(), nil
}

func jdbcCharset(name string) string {
	switch strings.ToUpper(name) {
	case "UTF-8", "UTF8":
		return "utf8mb4"
	default:
		return strings.ToLower(name)
	}
}

// PoolConfig 控制连接池参数，零值使用默认值。
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open 根据连接串打开数据库并完成连通性检查。
func Open(ctx context.Context, cs string, pool PoolConfig) (*sql.DB, Connection, error) {
	conn, err := ParseConnectionString(cs)
	if err != nil {
		return nil, Connection{}, err
	}
	if conn.DriverName == "" {
		return nil, conn, xerrors.New(xerrors.CodeUnsupportedDialect, fmt.Sprintf("no Go driver available for %s", conn.Dialect))
	}

	db, err := sql.Open(conn.DriverName, conn.DSN)
	if err != nil {
		return nil, conn, xerrors.Wrap(xerrors.CodeStorageFailure, err, "open database")
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(4)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(10 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, conn, xerrors.Wrap(xerrors.CodeStorageFailure, err, "ping database")
	}
	return db, conn, nil
}
