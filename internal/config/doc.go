// Package config loads the init/seed configuration document that controls
// how cmd/liarsdiced brings a database up: whether to create the schema,
// run migrations, validate it, and seed starting rows.
//
// Documents are JSON(C) (parsed leniently via tailscale/hujson so operators
// can leave comments in a hand-edited file) or XML, both under a top-level
// "database" object. Loading follows the same precedence the CLI tooling in
// the wider corpus uses: built-in defaults, then a global user file, then a
// project file, then an explicit path argument, each layer overriding the
// previous field-by-field.
package config
