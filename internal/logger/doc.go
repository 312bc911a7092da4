// Package logger wraps zap to offer:
//   - a global sugared logger with a console or JSON encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and an atomic level shared by every derived logger,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services take a context and log through the logger stored in it, so a
// component name set once with WithName follows every line it writes.
package logger
