package main

// General API documentation for swaggo. Regenerate ./docs with `swag init -g cmd/mindbridge/docs.go`.
//
// @title           mindbridge API
// @version         1.0
// @description     Local HTTP API for the on-device model catalog, downloads, inference session and chat transcript.
//
// @contact.name   mindbridge maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
