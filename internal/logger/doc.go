// Package logger builds the zap logger shared by every component, with
// optional size-based rotation through lumberjack.
package logger
