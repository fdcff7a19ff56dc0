package asm

import (
	"strings"

	"gavel/internal/executor"
)

const nasmTestProgramX86 = `section .text
global _start
_start:
	mov eax, 3
	xor ebx, ebx
	mov ecx, buffer
	mov edx, 4096
	int 0x80
	mov edx, eax
	mov eax, 4
	mov ebx, 1
	mov ecx, buffer
	int 0x80
	mov eax, 1
	xor ebx, ebx
	int 0x80
section .bss
buffer:	resb 4096
`

const nasmTestProgramX64 = `section .text
global _start
_start:
	xor rax, rax
	xor rdi, rdi
	mov rsi, buffer
	mov rdx, 4096
	syscall
	mov rdx, rax
	mov rax, 1
	mov rdi, 1
	mov rsi, buffer
	syscall
	mov rax, 60
	xor rdi, rdi
	syscall
section .bss
buffer:	resb 4096
`

// NewNASM builds the Intel-syntax adapter for arch. nasm itself is
// architecture-neutral; only the output format and the linker differ per
// architecture. A leading "; libc" comment implies the libc feature in
// addition to the explicit directive, a convention specific to this
// syntax.
func NewNASM(arch Arch, deps executor.Deps) *Runtime {
	name := "nasm"
	format := "elf32"
	testProgram := nasmTestProgramX86
	if arch.ISA == ISAX64 {
		name = "nasm64"
		format = "elf64"
		testProgram = nasmTestProgramX64
	}
	spec := &executor.Spec{
		Name:        name,
		Ext:         ".asm",
		Command:     "nasm",
		TestProgram: testProgram,
	}
	return newRuntime(spec, arch, nasmSyntax(format), deps)
}

func nasmSyntax(format string) syntax {
	return syntax{
		assembleArgs: func(asPath, source, object string) []string {
			return []string{asPath, "-f", format, source, "-o", object}
		},
		mapping: func(a Arch) map[string][]string {
			ld := make([]string, 0, len(a.PlatformPrefixes))
			for _, prefix := range a.PlatformPrefixes {
				ld = append(ld, prefix+"-ld")
			}
			return map[string][]string{"nasm": {"nasm"}, a.LDName: ld}
		},
		extraFeatures: func(source string) []string {
			if strings.HasPrefix(source, "; libc") {
				return []string{"libc"}
			}
			return nil
		},
	}
}
