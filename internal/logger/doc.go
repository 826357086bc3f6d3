// Package logger wraps zap for the carnival CLI:
//   - a global sugared logger writing human-readable console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV) so every command and
//     engine call carries a scoped logger,
//   - level parsing for the --log-level flag and the log_level setting,
//   - leveled convenience functions (Infof, WarnKV, ErrorKV, ...).
//
// Stdout is left to command output so results can be piped.
package logger
