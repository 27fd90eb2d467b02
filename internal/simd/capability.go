package simd

import (
	"os"
	"strings"
)

// ISA represents the population-count implementation in use.
type ISA uint8

const (
	// Generic represents the pure Go SWAR implementation.
	Generic ISA = iota
	// POPCNT represents the hardware population count instruction
	// (x86-64 POPCNT, ARM64 CNT via ASIMD), reached through math/bits.
	POPCNT
)

// String returns the string representation of an ISA.
func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case POPCNT:
		return "popcnt"
	default:
		return "unknown"
	}
}

// ParseISA parses a string into an ISA value.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "popcnt":
		return POPCNT, true
	default:
		return Generic, false
	}
}

// EnvOverride is the environment variable that forces a kernel selection.
const EnvOverride = "MHDMEM_SIMD"

// Set once by the platform-specific init.
var (
	activeISA   ISA
	hasOverride bool
	hasPOPCNT   bool
)

func initCapabilities() {
	if override := os.Getenv(EnvOverride); override != "" {
		if isa, ok := ParseISA(override); ok {
			hasOverride = true
			if isISAAvailable(isa) {
				setISA(isa)
				return
			}
			// Unavailable override: fall through to auto-detection.
		}
	}

	if hasPOPCNT {
		setISA(POPCNT)
		return
	}
	setISA(Generic)
}

func isISAAvailable(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case POPCNT:
		return hasPOPCNT
	default:
		return false
	}
}

func setISA(isa ISA) {
	activeISA = isa
	switch isa {
	case POPCNT:
		kernelPopCount = popCountHW
		kernelHamming = hammingHW
		kernelMasked = maskedHammingHW
	default:
		kernelPopCount = popCountGeneric
		kernelHamming = hammingGeneric
		kernelMasked = maskedHammingGeneric
	}
}

// ActiveISA returns the currently active ISA.
func ActiveISA() ISA {
	return activeISA
}

// IsOverridden returns true if MHDMEM_SIMD was set to a recognised value.
func IsOverridden() bool {
	return hasOverride
}

// HasPOPCNT reports whether the CPU has a hardware population count.
func HasPOPCNT() bool {
	return hasPOPCNT
}
