// Package logger provides the process-wide zap logger and its request-scoped variants.
//
// Init is called once from main. Handlers and services pull the scoped logger
// out of the request context:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))
//	log.Warn("refresh token expired", logger.AppID(appID))
//
// Raw secrets, codes and tokens must never be passed as field values; log hashes
// or identifiers instead.
package logger
