// Package config loads server configuration from the environment.
//
// Every setting has an environment variable with a default (see the struct
// tags). SHELL_PROFILE may name a YAML or TOML file describing the shell to
// launch; its fields override the environment.
//
// Example profile (jsh.yaml):
//
//	command: /bin/jsh
//	args: [--osc]
//	workdir: /home/project
//	env:
//	  NODE_ENV: development
//	cols: 120
//	rows: 30
package config
