// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every field has a default, so an empty file yields a working client that
// follows prices only; set positions.wallet_address to follow a wallet.
package config
