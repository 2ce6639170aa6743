package crawlers

import (
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/shirou/gopsutil/v3/mem"
)

// minBrowserMemory is roughly what one headless session needs to render the
// listing without thrashing.
const minBrowserMemory = 500 * 1024 * 1024

// warnLowMemory checks available memory before a browser launch. Advisory
// only; the launch proceeds regardless.
func warnLowMemory() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		utils.Debugf("memory preflight unavailable: %v", err)
		return
	}
	if vm.Available < minBrowserMemory {
		utils.Warnf("low available memory (%d MiB); the browser session may be unstable",
			vm.Available/(1024*1024))
	}
}
