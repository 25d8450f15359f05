package detect

import (
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Device selects the compute backend for inference. Supported values:
// "auto", "cpu", "cuda:N", "mps".
type Device struct {
	Backend gocv.NetBackendType
	Target  gocv.NetTargetType
	Name    string
}

// ResolveDevice maps a device selector onto an OpenCV DNN backend and
// target pair.
//
// "auto" prefers the CUDA backend; OpenCV falls back to the default CPU
// path at inference time when the build carries no CUDA support, which
// is exactly the probe-then-fallback behavior wanted here. "cuda:N"
// validates N but cannot pin a specific GPU index, that selection is
// not exposed by the DNN module. "mps" maps to the OpenCL target, the
// accelerated path OpenCV offers on Apple hardware.
func ResolveDevice(selector string) (Device, error) {
	sel := strings.ToLower(strings.TrimSpace(selector))
	switch {
	case sel == "" || sel == "auto":
		return Device{
			Backend: gocv.NetBackendCUDA,
			Target:  gocv.NetTargetCUDA,
			Name:    "auto",
		}, nil
	case sel == "cpu":
		return Device{
			Backend: gocv.NetBackendDefault,
			Target:  gocv.NetTargetCPU,
			Name:    "cpu",
		}, nil
	case sel == "cuda" || strings.HasPrefix(sel, "cuda:"):
		if rest, ok := strings.CutPrefix(sel, "cuda:"); ok {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return Device{}, fmt.Errorf("invalid CUDA device index %q", rest)
			}
		}
		return Device{
			Backend: gocv.NetBackendCUDA,
			Target:  gocv.NetTargetCUDA,
			Name:    sel,
		}, nil
	case sel == "mps":
		// NetTargetFP32 is the OpenCL target in the DNN module.
		return Device{
			Backend: gocv.NetBackendDefault,
			Target:  gocv.NetTargetFP32,
			Name:    "mps",
		}, nil
	}
	return Device{}, fmt.Errorf("unknown device selector %q (want auto, cpu, cuda:N or mps)", selector)
}
