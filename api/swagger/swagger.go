package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Chatbot API",
        "description": "REST API for user registration, session management, and chat.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Users", "description": "Registration and session lifecycle"},
        {"name": "Chat", "description": "Chat interactions"},
        {"name": "Health", "description": "Probes"}
    ],
    "paths": {
        "/live": {
            "get": {
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "Alive"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Dependencies unavailable"}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Detailed health check",
                "responses": {
                    "200": {"description": "Per-dependency status"}
                }
            }
        },
        "/api/v1/users/register": {
            "post": {
                "tags": ["Users"],
                "summary": "Register a new user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/api/v1/users/login": {
            "post": {
                "tags": ["Users"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair; refresh token also set as HTTP-only cookie", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/users/refresh": {
            "post": {
                "tags": ["Users"],
                "summary": "Rotate refresh token",
                "responses": {
                    "200": {"description": "New token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid, expired, or revoked token"}
                }
            }
        },
        "/api/v1/users/logout": {
            "post": {
                "tags": ["Users"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "Session revoked (idempotent)"},
                    "401": {"description": "Missing or invalid access token"}
                }
            }
        },
        "/api/v1/users/logout-all": {
            "post": {
                "tags": ["Users"],
                "summary": "Logout every session",
                "responses": {
                    "204": {"description": "All sessions revoked"},
                    "401": {"description": "Missing or invalid access token"}
                }
            }
        },
        "/api/v1/chat": {
            "post": {
                "tags": ["Chat"],
                "summary": "Chat endpoint",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "Bot reply", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid access token"}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["name", "email", "password"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {
                "message": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
