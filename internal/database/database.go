package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrConnectionFailure 表示无法建立或取得数据库连接
var ErrConnectionFailure = errors.New("connection failure")

// Config 描述一次连接所需的全部参数，按值传递，不依赖任何全局状态
type Config struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DriverName 返回 database/sql 注册的驱动名
func (c Config) DriverName() (string, error) {
	switch c.Driver {
	case "mysql":
		return "mysql", nil
	case "postgres":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

// DSN 按驱动格式拼接连接串；sqlite 下 Name 是数据库文件路径
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.User = c.User
		mc.Passwd = c.Password
		mc.DBName = c.Name
		return mc.FormatDSN(), nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:   "/" + c.Name,
		}
		return u.String(), nil
	case "sqlite":
		if c.Name == "" {
			return "", fmt.Errorf("sqlite database path is required")
		}
		return c.Name, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

// Open 打开连接池并 ping 一次；失败时返回 ErrConnectionFailure
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	driver, err := cfg.DriverName()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnectionFailure, cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ping 检查数据库是否可达
func Ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrConnectionFailure, err)
	}
	return nil
}
