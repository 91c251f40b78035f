package main

import "github.com/hance08/keapay/cmd"

func main() {
	cmd.Execute()
}
