// Package docs registers the OpenAPI document for the tellix API.
//
// @title Tellix API
// @version 0.1.0
// @description HTTP reconnaissance for agents. Wraps the httpx binary behind a
// @description small request protocol served over HTTP and WebSocket.
// @description
// @description Requests carry an action (metadata, help or run), newline separated
// @description targets and a flag string. Results are the binary's JSON records.
//
// @contact.name Tellix
// @contact.url https://github.com/anstrom/tellix
//
// @license.name MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication. Not required when no keys are configured.
//
//go:generate swag init -g docs.go -d ./,../internal/api/handlers,../internal/protocol -o . --outputTypes go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Tellix",
            "url": "https://github.com/anstrom/tellix"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Returns service health and invocation slot usage",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.HealthResponse"}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"$ref": "#/definitions/handlers.HealthResponse"}
                    }
                }
            }
        },
        "/probe": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Dispatches a metadata, help or run request. Run probes the targets with the given flags.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Probe"],
                "summary": "Run a protocol request",
                "parameters": [
                    {
                        "description": "Protocol request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/protocol.Request"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/protocol.Response"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/protocol.Response"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/middleware.ErrorResponse"}
                    },
                    "502": {
                        "description": "Bad Gateway",
                        "schema": {"$ref": "#/definitions/protocol.Response"}
                    },
                    "504": {
                        "description": "Gateway Timeout",
                        "schema": {"$ref": "#/definitions/protocol.Response"}
                    }
                }
            }
        },
        "/version": {
            "get": {
                "description": "Returns version and build info",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Version information",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.VersionResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "string"},
                "uptime": {"type": "string", "example": "2h30m45s"},
                "probes": {"$ref": "#/definitions/probe.LimiterStats"}
            }
        },
        "handlers.VersionResponse": {
            "type": "object",
            "properties": {
                "service": {"type": "string", "example": "tellix"},
                "version": {"type": "string", "example": "0.1.0"},
                "go_version": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "middleware.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "Authentication required"},
                "message": {"type": "string"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "probe.LimiterStats": {
            "type": "object",
            "properties": {
                "capacity": {"type": "integer", "example": 4},
                "active": {"type": "integer"},
                "available": {"type": "integer"},
                "oldest_ns": {"type": "integer"},
                "closed": {"type": "boolean"}
            }
        },
        "protocol.Request": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["metadata", "help", "run"], "example": "run"},
                "targets": {"type": "string", "example": "example.com\nhttps://example.org"},
                "params": {"type": "string", "example": "-title -status-code"},
                "confirm": {"type": "boolean"}
            }
        },
        "protocol.Response": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["success", "error"]},
                "results": {"type": "array", "items": {"type": "object"}},
                "metadata": {"type": "object"},
                "help": {"type": "string"},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "description": "API key for authentication. Not required when no keys are configured.",
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Tellix API",
	Description:      "HTTP reconnaissance for agents. Wraps the httpx binary behind a\nsmall request protocol served over HTTP and WebSocket.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
