package main

// General API documentation for swaggo. Run `swag init -g cmd/batchd/docs.go`
// to regenerate the embedded document served with -tags=swagger.
//
// @title           batchd API
// @version         1.0
// @description     Dynamic request batching in front of a batched inference backend.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
