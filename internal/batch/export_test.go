package batch

// ConfigForTest exposes the processor configuration for tests.
func (processor *Processor) ConfigForTest() Options { return processor.config }

// ValidateConfigForTest exposes validateConfig for tests.
func (processor *Processor) ValidateConfigForTest() error { return processor.validateConfig() }

// SetupOutputDirectoryForTest exposes setupOutputDirectory for tests.
func SetupOutputDirectoryForTest(baseOutputPath, documentPath string) (string, error) {
	return setupOutputDirectory(baseOutputPath, documentPath)
}
