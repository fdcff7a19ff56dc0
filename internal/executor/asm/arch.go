package asm

import "runtime"

// ISA names a target instruction set.
type ISA string

const (
	ISAX86 ISA = "x86"
	ISAX64 ISA = "x64"
)

// Arch is the immutable per-instruction-set profile an adapter reads:
// logical toolchain names, C-runtime linkage inputs and the optional
// emulator. Profiles are built once at startup and shared by every
// concurrent submission.
type Arch struct {
	ISA ISA

	// ASName and LDName are the logical registry names of the assembler
	// and linker.
	ASName string
	LDName string

	// DynamicLinker, CRTPre and CRTPost are spliced into the link command
	// when the source declares the libc feature.
	DynamicLinker string
	CRTPre        []string
	CRTPost       []string

	// QEMUPath, when set and present on disk, switches all execution to
	// user-mode emulation.
	QEMUPath string

	// PlatformPrefixes are the cross-toolchain name prefixes tried during
	// autoconfiguration, e.g. "x86_64-linux-gnu" yielding
	// "x86_64-linux-gnu-as".
	PlatformPrefixes []string
}

// Overrides carries host-specific deviations from the stock profile
// defaults, typically sourced from configuration.
type Overrides struct {
	QEMUPath      string
	DynamicLinker string
	CRTPre        []string
	CRTPost       []string
	// CRTInLib32 switches the x86 runtime objects to /usr/lib32, for hosts
	// that do not use the Debian multiarch layout.
	CRTInLib32 bool
}

// X86Arch builds the 32-bit x86 profile.
func X86Arch(o Overrides) Arch {
	a := Arch{
		ISA:              ISAX86,
		ASName:           "as_x86",
		LDName:           "ld_x86",
		DynamicLinker:    "/lib/ld-linux.so.2",
		CRTPre:           []string{"/usr/lib/i386-linux-gnu/crt1.o", "/usr/lib/i386-linux-gnu/crti.o"},
		CRTPost:          []string{"/usr/lib/i386-linux-gnu/crtn.o"},
		PlatformPrefixes: []string{"i586-linux-gnu"},
	}
	if o.CRTInLib32 {
		a.CRTPre = []string{"/usr/lib32/crt1.o", "/usr/lib32/crti.o"}
		a.CRTPost = []string{"/usr/lib32/crtn.o"}
	}
	return applyOverrides(a, o)
}

// X64Arch builds the 64-bit x86 profile.
func X64Arch(o Overrides) Arch {
	a := Arch{
		ISA:              ISAX64,
		ASName:           "as_x64",
		LDName:           "ld_x64",
		DynamicLinker:    "/lib64/ld-linux-x86-64.so.2",
		CRTPre:           []string{"/usr/lib/x86_64-linux-gnu/crt1.o", "/usr/lib/x86_64-linux-gnu/crti.o"},
		CRTPost:          []string{"/usr/lib/x86_64-linux-gnu/crtn.o"},
		PlatformPrefixes: []string{"x86_64-linux-gnu"},
	}
	return applyOverrides(a, o)
}

func applyOverrides(a Arch, o Overrides) Arch {
	if o.QEMUPath != "" {
		a.QEMUPath = o.QEMUPath
	}
	if o.DynamicLinker != "" {
		a.DynamicLinker = o.DynamicLinker
	}
	if len(o.CRTPre) > 0 {
		a.CRTPre = o.CRTPre
	}
	if len(o.CRTPost) > 0 {
		a.CRTPost = o.CRTPost
	}
	return a
}

// CanDebug reports whether the host can natively trace code for isa. An
// amd64 host traces both x86 variants; a 386 host only the 32-bit one.
func CanDebug(isa ISA) bool {
	switch runtime.GOARCH {
	case "amd64":
		return isa == ISAX86 || isa == ISAX64
	case "386":
		return isa == ISAX86
	}
	return false
}
