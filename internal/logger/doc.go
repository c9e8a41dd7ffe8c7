// Package logger wraps zap with a global sugared logger, context helpers
// (ToContext/FromContext/WithName/WithKV) and leveled convenience functions.
//
// Subsystems take a context and log through the logger stored in it, so
// every line carries the name of the component that wrote it.
package logger
