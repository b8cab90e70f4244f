package main

// main is the entry point for the ila-merge application. Execute (defined in
// root.go) sets up and runs the root Cobra command, which handles flag
// parsing, configuration loading, signal-aware context setup, and invoking the
// merge run. Error printing and the exit code are managed by Cobra based on
// the error returned from RunE.
func main() {
	Execute()
}
