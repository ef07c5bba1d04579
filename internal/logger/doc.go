// Package logger holds the process-wide zap logger the grabber logs through.
// Every helper takes a context: FromContext picks up a logger attached with
// ToContext and falls back to the shared global one otherwise. The level is
// backed by an atomic, so config or flag changes apply to loggers that were
// created before the change. Message, formatted, and key-value variants are
// provided for each level.
package logger
