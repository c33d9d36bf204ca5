//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// docTemplate is a trimmed OpenAPI 2.0 description of the public routes.
// Regenerate with `swag init -g cmd/batchd/docs.go` when handlers change.
const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "batchd API",
    "description": "Dynamic request batching in front of a batched inference backend.",
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": ["http"],
  "paths": {
    "/infer": {
      "post": {
        "tags": ["infer"],
        "summary": "Run one request through the batcher",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.InferRequest"}}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InferResponse"}},
          "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
          "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
        }
      }
    },
    "/models": {
      "get": {"tags": ["models"], "summary": "List models", "produces": ["application/json"],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}}
    },
    "/models/{id}": {
      "delete": {"tags": ["models"], "summary": "Drain and release a model's batcher",
        "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}
    },
    "/models/{id}/flush": {
      "post": {"tags": ["models"], "summary": "Dispatch a model's current batch now",
        "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
        "responses": {"202": {"description": "Accepted"}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}
    },
    "/status": {
      "get": {"tags": ["status"], "summary": "Batcher status", "produces": ["application/json"],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}}
    }
  },
  "definitions": {
    "types.InferRequest": {"type": "object", "properties": {
      "model": {"type": "string"}, "id": {"type": "string"}, "timeout_ms": {"type": "integer"},
      "inputs": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}}}},
    "types.InferResponse": {"type": "object", "properties": {
      "id": {"type": "string"}, "model": {"type": "string"}, "batch_id": {"type": "integer"},
      "batch_size": {"type": "integer"}, "position": {"type": "integer"},
      "queue_wait_ms": {"type": "number"}, "backend_ms": {"type": "number"},
      "outputs": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}}}}},
    "types.ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}}},
    "types.Model": {"type": "object", "properties": {
      "id": {"type": "string"}, "name": {"type": "string"}, "path": {"type": "string"},
      "inputs": {"type": "array", "items": {"type": "string"}},
      "input_widths": {"type": "object", "additionalProperties": {"type": "integer"}},
      "max_batch_size": {"type": "integer"}, "max_latency_ms": {"type": "integer"}, "max_in_flight": {"type": "integer"}}},
    "types.StatusResponse": {"type": "object", "properties": {
      "backend": {"type": "string"}, "default_model": {"type": "string"}, "models": {"type": "integer"},
      "state": {"type": "string"}, "uptime_seconds": {"type": "integer"}, "server_time_unix": {"type": "integer"},
      "batchers": {"type": "array", "items": {"type": "object"}}}},
    "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}}
  }
}`

type swaggerDoc struct{}

func (swaggerDoc) ReadDoc() string { return docTemplate }

func init() {
	swag.Register(swag.Name, swaggerDoc{})
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
