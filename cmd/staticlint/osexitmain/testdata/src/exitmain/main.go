package main

import (
	"os"
	"syscall"
)

func helper() {
	os.Exit(2)
}

func main() {
	defer func() {
		os.Exit(3)
	}()
	helper()
	os.Exit(1)      // want `direct os\.Exit call in main\.main`
	syscall.Exit(1) // want `direct syscall\.Exit call in main\.main`
}
