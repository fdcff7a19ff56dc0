package asm

import "gavel/internal/executor"

const gasTestProgramX86 = `.global _start
.text
_start:
	movl $3, %eax
	xorl %ebx, %ebx
	movl $buffer, %ecx
	movl $4096, %edx
	int $0x80
	movl %eax, %edx
	movl $4, %eax
	movl $1, %ebx
	movl $buffer, %ecx
	int $0x80
	movl $1, %eax
	xorl %ebx, %ebx
	int $0x80
.bss
buffer:
	.skip 4096
`

const gasTestProgramX64 = `.global _start
.text
_start:
	xorq %rax, %rax
	xorq %rdi, %rdi
	movq $buffer, %rsi
	movq $4096, %rdx
	syscall
	movq %rax, %rdx
	movq $1, %rax
	movq $1, %rdi
	movq $buffer, %rsi
	syscall
	movq $60, %rax
	xorq %rdi, %rdi
	syscall
.bss
buffer:
	.skip 4096
`

// NewGAS builds the GNU-assembler adapter for arch. The assembler and
// linker both resolve through the architecture's platform-prefixed names
// during autoconfiguration.
func NewGAS(arch Arch, deps executor.Deps) *Runtime {
	name := "gas32"
	testProgram := gasTestProgramX86
	if arch.ISA == ISAX64 {
		name = "gas64"
		testProgram = gasTestProgramX64
	}
	spec := &executor.Spec{
		Name:        name,
		Ext:         ".asm",
		Command:     arch.ASName,
		TestProgram: testProgram,
	}
	return newRuntime(spec, arch, gasSyntax, deps)
}

var gasSyntax = syntax{
	assembleArgs: func(asPath, source, object string) []string {
		return []string{asPath, "-o", object, source}
	},
	mapping: func(a Arch) map[string][]string {
		as := make([]string, 0, len(a.PlatformPrefixes))
		ld := make([]string, 0, len(a.PlatformPrefixes))
		for _, prefix := range a.PlatformPrefixes {
			as = append(as, prefix+"-as")
			ld = append(ld, prefix+"-ld")
		}
		return map[string][]string{a.ASName: as, a.LDName: ld}
	},
}
