package main

// General API documentation for swaggo. Regenerate ./docs with:
//
//	swag init -g cmd/modelcached/docs.go -d ./,./internal/httpapi -o docs
//
// @title           modelcache API
// @version         1.0
// @description     HTTP API for the model lifecycle cache: registry, cache, preload and status.
//
// @contact.name   modelcache maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
