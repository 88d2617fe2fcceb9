// Package config loads the composer configuration file.
//
// A configuration is read from YAML (gopkg.in/yaml.v3) or TOML
// (github.com/BurntSushi/toml), chosen by file extension, on top of the
// built-in defaults. The file is located in this order:
//
//  1. the --config flag
//  2. $COMPOSER_CONFIG
//  3. composer.yaml, composer.yml or composer.toml in the working directory
//  4. $XDG_CONFIG_HOME/composer/config.yaml (or .yml, .toml)
//
// When none exists the defaults are used. COMPOSER_STACKS_DIR,
// COMPOSER_DATA_DIR and LOG_LEVEL override the file. The result is checked
// with go-playground/validator before use.
//
// Example composer.yaml:
//
//	stacks_dir: /srv/stacks
//	default_priority: 50
//	compose_command: [docker, compose]
//	history:
//	  enabled: true
//	telemetry:
//	  logging:
//	    level: info
//	  metrics:
//	    enabled: true
//	    textfile_path: /var/lib/node_exporter/composer.prom
package config
