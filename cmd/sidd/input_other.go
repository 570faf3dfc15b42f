//go:build !linux

package main

import "os"

// readInputDevices reads every device in its own goroutine.
func readInputDevices(files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}
