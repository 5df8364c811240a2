package ocrengine

// ErrorForExitCodeForTest exposes errorForExitCode for tests.
func ErrorForExitCodeForTest(code int) error { return errorForExitCode(code) }

// InterpretExitCodeForTest exposes interpretExitCode for tests.
func InterpretExitCodeForTest(execErr error, output []byte) error {
	return interpretExitCode(execErr, output)
}

// ConfigForTest exposes the resolved options for tests.
func (engine *OCRmyPDF) ConfigForTest() Options { return engine.config }
