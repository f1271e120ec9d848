package ratelimit

import (
	"fmt"
	"strings"
)

// KeyForReseller builds a limiter key scoped to one reseller's key generation.
func KeyForReseller(resellerID uint64) string {
	if resellerID == 0 {
		return ""
	}
	return fmt.Sprintf("r:%d", resellerID)
}

// KeyForDevice builds a limiter key scoped to one device's verify calls.
func KeyForDevice(deviceID string) string {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ""
	}
	return "d:" + deviceID
}
