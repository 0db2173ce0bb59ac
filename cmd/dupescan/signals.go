package main

import (
	"os"
	"syscall"
)

// terminationSignals cancel a scan in progress.
var terminationSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}
