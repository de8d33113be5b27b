package runner

import "syscall"

var procGenerateConsoleCtrlEvent = syscall.NewLazyDLL("kernel32.dll").NewProc("GenerateConsoleCtrlEvent")

// The Windows console keeps output processing when input is raw.
func fixOutputProcessing(int) {}

// sendInterrupt raises CTRL_C_EVENT for the current process group.
func sendInterrupt() {
	_, _, _ = procGenerateConsoleCtrlEvent.Call(0, 0)
}
