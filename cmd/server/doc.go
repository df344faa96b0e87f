// Command server runs the Clipstream API server.

// This package wires up the application and starts the HTTP listener. The
// actual functionality is organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/auth: Authentication, sessions, OAuth and TOTP
// - internal/video: Upload processing pipeline (ffmpeg probing, thumbnails)
// - internal/search: Elasticsearch catalog search
// - internal/notify: WebSocket push for processing and engagement events
// - internal/storage: Media storage (S3 or local disk)
// - internal/database: Database connection and migrations
// - internal/email: Transactional email via SES
// - internal/middleware: HTTP middleware (rate limiting, caching, etc.)
// - internal/cache: Redis client wrapper
// - internal/metrics: Prometheus instrumentation

// See the individual package documentation for detailed reference.
package main
