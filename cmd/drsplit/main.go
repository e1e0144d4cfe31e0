// Command drsplit splits an Excel sheet into one sheet or file per group.
package main

import "github.com/klytics/drsplit/cmd"

func main() {
	cmd.Execute()
}
