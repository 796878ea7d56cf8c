package models

import (
	"fmt"
	"strings"
)

type ScanType string

const (
	Forward        ScanType = "FWD"
	ReturnToOrigin ScanType = "RTO"
)

// ParseScanType accepts the wire codes as well as the long names
// ("forward", "return_to_origin", "rto", ...), case-insensitive.
func ParseScanType(s string) (ScanType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FWD", "FORWARD":
		return Forward, nil
	case "RTO", "RETURN_TO_ORIGIN", "RETURN-TO-ORIGIN":
		return ReturnToOrigin, nil
	}
	return "", fmt.Errorf("unknown scan type %q", s)
}

func (t ScanType) Valid() bool {
	return t == Forward || t == ReturnToOrigin
}

// MaxBinLength is the longest bin code accepted for this movement type.
func (t ScanType) MaxBinLength() int {
	switch t {
	case Forward:
		return 3
	case ReturnToOrigin:
		return 4
	}
	return 0
}

func (t ScanType) DisplayName() string {
	switch t {
	case Forward:
		return "Forward"
	case ReturnToOrigin:
		return "Return to origin"
	}
	return string(t)
}

func (t ScanType) String() string {
	return string(t)
}
