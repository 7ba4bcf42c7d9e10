//go:build !wasip1 && !tinygo.wasm

package ftplugin

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Stub stands in for the host outside wasm so plugin logic can be tested natively.
var Stub = &HostStub{Out: os.Stderr}

// HostStub records what a plugin would send to the host.
type HostStub struct {
	mu            sync.Mutex
	Out           io.Writer
	Customization string
	Original      string
	Logs          []string
}

func (h *HostStub) log(level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	line := level + ": " + msg
	h.Logs = append(h.Logs, line)
	if h.Out != nil {
		fmt.Fprintln(h.Out, line)
	}
}

// LogDebug logs msg at debug level on the host.
func LogDebug(msg string) { Stub.log("debug", msg) }

// LogInfo logs msg at info level on the host.
func LogInfo(msg string) { Stub.log("info", msg) }

// LogError logs msg at error level on the host.
func LogError(msg string) { Stub.log("error", msg) }

// SiteCustomization returns the user's customization string for this plugin.
func SiteCustomization() string { return Stub.Customization }

// OriginalPath returns the path the current hook run started from.
func OriginalPath() string { return Stub.Original }
