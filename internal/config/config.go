package config

import (
	"github.com/dustin/go-humanize"

	"github.com/KilimcininKorOglu/obastore/internal/password"
)

// Config holds the complete store configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LogConfig      `mapstructure:"logging"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	ACL      ACLConfig      `mapstructure:"acl"`
	Password PasswordConfig `mapstructure:"password"`
}

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	// Backend is one of "memory", "badger" or "sqlite".
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	SyncWrites bool   `mapstructure:"syncWrites"`
	// CacheSize is a human-readable byte size such as "64MB".
	CacheSize string `mapstructure:"cacheSize"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SchemaConfig locates the schema file. An empty File selects the built-in
// directory schema.
type SchemaConfig struct {
	File string `mapstructure:"file"`
}

// ACLConfig locates the access rules.
type ACLConfig struct {
	File          string `mapstructure:"file"`
	DefaultPolicy string `mapstructure:"defaultPolicy"`
}

// PasswordConfig holds the global password policy and hashing costs.
type PasswordConfig struct {
	Policy     password.Policy `mapstructure:"policy"`
	BcryptCost int             `mapstructure:"bcryptCost"`
	Argon2     Argon2Config    `mapstructure:"argon2"`
}

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Time    uint32 `mapstructure:"time"`
	Memory  uint32 `mapstructure:"memory"`
	Threads uint8  `mapstructure:"threads"`
}

// Params converts the hashing costs for password.NewHasher.
func (c PasswordConfig) Params() password.Params {
	p := password.DefaultParams()
	if c.BcryptCost != 0 {
		p.BcryptCost = c.BcryptCost
	}
	if c.Argon2.Time != 0 {
		p.Argon2.Time = c.Argon2.Time
	}
	if c.Argon2.Memory != 0 {
		p.Argon2.Memory = c.Argon2.Memory
	}
	if c.Argon2.Threads != 0 {
		p.Argon2.Threads = c.Argon2.Threads
	}
	return p
}

// CacheBytes parses CacheSize. Invalid or empty sizes yield 0.
func (c StorageConfig) CacheBytes() int64 {
	n, err := humanize.ParseBytes(c.CacheSize)
	if err != nil {
		return 0
	}
	return int64(n)
}
