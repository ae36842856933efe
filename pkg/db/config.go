package db

import (
	"strings"

	"github.com/smallbiznis/opinionetl/internal/config"
)

type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

// FromConfig maps one application database section onto a connection config.
func FromConfig(c config.DatabaseConfig) Config {
	return Config{
		Type:            strings.ToLower(strings.TrimSpace(c.Type)),
		Host:            c.Host,
		Port:            c.Port,
		Name:            c.Name,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		MaxIdleConn:     c.MaxIdleConn,
		MaxOpenConn:     c.MaxOpenConn,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}
