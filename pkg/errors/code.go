package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Runtime & Judge errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Timeout             ErrorCode = 10008

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10303

	// Configuration errors (10400-10499)
	ConfigInvalid ErrorCode = 10400

	// ========== Runtime & Judge Errors (13000-13999) ==========

	// Runtime availability (13000-13099)
	LanguageNotSupported   ErrorCode = 13000
	ToolchainMissing       ErrorCode = 13001
	SelfTestFailed         ErrorCode = 13002
	NativeDebugUnsupported ErrorCode = 13003

	// Build pipeline (13100-13199)
	CompileFailed  ErrorCode = 13100
	CompileTimeout ErrorCode = 13101

	// Sandboxed execution (13200-13299)
	SandboxError     ErrorCode = 13200
	PolicyViolation  ErrorCode = 13201
	ResourceExceeded ErrorCode = 13202

	// Judge workflow (13300-13399)
	JudgeSystemError ErrorCode = 13300
)

var codeMessages = map[ErrorCode]string{
	Success:             "success",
	InternalServerError: "internal server error",
	InvalidParams:       "invalid parameters",
	NotFound:            "not found",
	Timeout:             "operation timed out",

	ValidationFailed:   "validation failed",
	InvalidFormat:      "invalid format",
	RequiredFieldEmpty: "required field is empty",

	ConfigInvalid: "invalid configuration",

	LanguageNotSupported:   "language not supported",
	ToolchainMissing:       "toolchain missing",
	SelfTestFailed:         "runtime self-test failed",
	NativeDebugUnsupported: "unable to natively debug",

	CompileFailed:  "compilation failed",
	CompileTimeout: "compilation time limit exceeded",

	SandboxError:     "sandbox error",
	PolicyViolation:  "security policy violation",
	ResourceExceeded: "resource limit exceeded",

	JudgeSystemError: "judge system error",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "unknown error"
}
