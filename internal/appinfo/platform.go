package appinfo

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

// Unknown is reported for facts the platform does not expose.
const Unknown = "--unknown--"

var (
	osVersion     string
	osVersionOnce sync.Once
)

// OSVersion returns the operating system version, e.g. "22.04" or
// "14.4.1". It falls back to the kernel version and then to Unknown.
func OSVersion() string {
	osVersionOnce.Do(func() {
		osVersion = Unknown
		if _, _, version, err := host.PlatformInformation(); err == nil && version != "" {
			osVersion = version
			return
		}
		if kernel, err := host.KernelVersion(); err == nil && kernel != "" {
			osVersion = kernel
		}
	})
	return osVersion
}

// ProcessCreated returns when the OS created the current process. This is
// earlier than MainStarted: it includes loading and runtime init.
func ProcessCreated() (time.Time, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return time.Time{}, err
	}
	ms, err := p.CreateTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
