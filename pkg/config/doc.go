// Package config loads the forge CLI configuration.
//
// Configuration is read from forge.yaml, forge.cue or forge.json. CUE files
// are checked against a built-in #Config schema before decoding:
//
//	max_parallelism: 8
//	stop_timeout:    "1m"
//	logging: level:  "debug"
//
// FORGE_MAX_PARALLELISM, FORGE_LOG_LEVEL and FORGE_STOP_TIMEOUT override the
// file. The result is validated with struct tags.
package config
