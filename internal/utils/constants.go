package utils

// LoggerInitializationFailedMessageFormat wraps a logger construction failure.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes the fatal log entry written when
// a command returns an error.
const ApplicationExecutionFailedMessage = "application execution failed"
