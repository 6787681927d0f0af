package toolhost

import "syscall"

// cmdTermSignal is the graceful-shutdown signal sent to tool server
// children before the kill timer expires.
var cmdTermSignal = syscall.SIGTERM
