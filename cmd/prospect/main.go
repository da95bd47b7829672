// prospect: CLI for the mining session daemon. Sends session commands
// over the control channel and reads the archive directly.
package main

func main() {
	Execute()
}
