// Package logx configures redditcord's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured (combined log + error-only log)
//   - Optional chat log channel sink (min-level + rate limiting)
package logx
