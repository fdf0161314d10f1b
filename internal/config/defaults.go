package config

import (
	"github.com/KilimcininKorOglu/obastore/internal/password"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    "memory",
			Path:       "",
			SyncWrites: true,
			CacheSize:  "64MB",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		ACL: ACLConfig{
			DefaultPolicy: "deny",
		},
		Password: PasswordConfig{
			Policy:     *password.DefaultPolicy(),
			BcryptCost: password.DefaultParams().BcryptCost,
			Argon2: Argon2Config{
				Time:    password.DefaultArgon2Params().Time,
				Memory:  password.DefaultArgon2Params().Memory,
				Threads: password.DefaultArgon2Params().Threads,
			},
		},
	}
}

// setDefaults registers every key with viper so environment overrides are
// seen even when the file omits the key.
func setDefaults(v defaultSetter) {
	d := DefaultConfig()

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.syncWrites", d.Storage.SyncWrites)
	v.SetDefault("storage.cacheSize", d.Storage.CacheSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("schema.file", d.Schema.File)

	v.SetDefault("acl.file", d.ACL.File)
	v.SetDefault("acl.defaultPolicy", d.ACL.DefaultPolicy)

	p := d.Password.Policy
	v.SetDefault("password.policy.enabled", p.Enabled)
	v.SetDefault("password.policy.minLength", p.MinLength)
	v.SetDefault("password.policy.maxLength", p.MaxLength)
	v.SetDefault("password.policy.okChars", p.OKChars)
	v.SetDefault("password.policy.badChars", p.BadChars)
	v.SetDefault("password.policy.requireUppercase", p.RequireUppercase)
	v.SetDefault("password.policy.requireLowercase", p.RequireLowercase)
	v.SetDefault("password.policy.requireDigit", p.RequireDigit)
	v.SetDefault("password.policy.requireSpecial", p.RequireSpecial)
	v.SetDefault("password.policy.historyCount", p.HistoryCount)
	v.SetDefault("password.bcryptCost", d.Password.BcryptCost)
	v.SetDefault("password.argon2.time", d.Password.Argon2.Time)
	v.SetDefault("password.argon2.memory", d.Password.Argon2.Memory)
	v.SetDefault("password.argon2.threads", d.Password.Argon2.Threads)
}

type defaultSetter interface {
	SetDefault(key string, value interface{})
}
