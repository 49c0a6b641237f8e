// Command weftd is the CLI host for the weft kernel (spec.md §6): it owns
// everything core code is forbidden from touching directly — flags,
// environment, the config file, and process exit codes — and hands a
// populated config.Config down into internal/kernel. Replaces the
// teacher's hand-rolled main.go os.Args switch with cobra subcommands,
// following cmd/looms/root.go in the loom example.
package main

func main() {
	Execute()
}
