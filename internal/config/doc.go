// Package config provides configuration loading and validation for the
// object store.
//
// # Overview
//
// Configuration is read with viper from a YAML file. Every key has a
// default, and every key can be overridden from the environment with the
// OBASTORE_ prefix, dots replaced by underscores:
//
//	OBASTORE_STORAGE_BACKEND=badger
//	OBASTORE_PASSWORD_POLICY_MINLENGTH=12
//
// # Configuration Structure
//
//	type Config struct {
//	    Storage  StorageConfig  // persistence backend
//	    Logging  LogConfig      // logger level, format, output
//	    Schema   SchemaConfig   // schema file, built-in schema when empty
//	    ACL      ACLConfig      // access rules file and default policy
//	    Password PasswordConfig // global password policy and hashing costs
//	}
//
// # Example
//
//	storage:
//	  backend: badger
//	  path: /var/lib/obastore
//	  cacheSize: 128MB
//	logging:
//	  level: debug
//	  format: json
//	password:
//	  policy:
//	    minLength: 10
//	    requireSpecial: true
//	  bcryptCost: 12
//
// # Loading and Validation
//
//	cfg, err := config.Load("/etc/obastore/config.yaml")
//	if err != nil {
//	    return err
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    // each error is a ValidationError naming the offending key
//	}
package config
