// Package main is the Can I Click It? coordinator daemon and CLI.
//
// Usage:
//
//	coordinator serve
//	coordinator scan <url>
//	coordinator inspect <file|glob>...
//	coordinator quota [reset|limit <n>]
//
// Configuration comes from --config, CONFIG_PATH or ./config.yaml, with
// CICI_* environment overrides.
package main

func main() {
	Execute()
}
