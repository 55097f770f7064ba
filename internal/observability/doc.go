// Package observability builds the process-wide structured logger.
//
// Components receive a *zap.Logger through their constructors; nothing in the
// service reaches for a global logger.
package observability
