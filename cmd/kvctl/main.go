// Command kvctl is the emberdb command-line client: get, put, delete, and
// snapshot-dump operations against a database directory.
package main

func main() {
	execute()
}
