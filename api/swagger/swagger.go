package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Interpreter Booking API",
        "description": "Request assignment and interpreter availability engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and identity"},
        {"name": "Patients", "description": "Registry lookups and the local patient cache"},
        {"name": "Interpreters", "description": "Interpreter profiles and availability"},
        {"name": "Requests", "description": "Interpreter request lifecycle"},
        {"name": "Interpreter", "description": "Matching and claiming for interpreters"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fhir/patients/search": {
            "get": {
                "tags": ["Patients"],
                "summary": "Search the patient registry",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "name", "in": "query", "type": "string"},
                    {"name": "language", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Registry unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/patients/sync/{fhirId}": {
            "post": {
                "tags": ["Patients"],
                "summary": "Cache a registry patient locally",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "fhirId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Registry lookup failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List interpreter requests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "accepted", "completed", "cancelled"]},
                    {"name": "skip", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Raise an interpreter request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get request detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{id}/cancel": {
            "post": {
                "tags": ["Requests"],
                "summary": "Cancel a request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/interpreter/requests/pending": {
            "get": {
                "tags": ["Interpreter"],
                "summary": "Pending requests for the caller's language",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "language", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/interpreter/requests/{id}/accept": {
            "post": {
                "tags": ["Interpreter"],
                "summary": "Accept a pending request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "ALREADY_CLAIMED or INTERPRETER_UNAVAILABLE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/interpreter/requests/{id}/complete": {
            "post": {
                "tags": ["Interpreter"],
                "summary": "Complete an accepted request",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteRequestPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owning interpreter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/interpreters/me/availability": {
            "patch": {
                "tags": ["Interpreters"],
                "summary": "Toggle the caller's availability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAvailabilityPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Interpreter is busy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateRequestPayload": {
            "type": "object",
            "required": ["patient_id", "language", "delivery_method", "location_method", "duration_minutes"],
            "properties": {
                "patient_id": {"type": "string"},
                "language": {"type": "string"},
                "delivery_method": {"type": "string", "enum": ["onsite", "telephone", "telehealth"]},
                "location_method": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "is_stat": {"type": "boolean"},
                "patient_type": {"type": "string"},
                "request_notes": {"type": "string"}
            }
        },
        "CompleteRequestPayload": {
            "type": "object",
            "required": ["encounter_notes"],
            "properties": {
                "encounter_notes": {"type": "string"}
            }
        },
        "SetAvailabilityPayload": {
            "type": "object",
            "required": ["availability_status"],
            "properties": {
                "availability_status": {"type": "string", "enum": ["available", "unavailable"]}
            }
        },
        "InterpreterRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "requested_by": {"type": "string"},
                "patient_id": {"type": "string"},
                "interpreter_id": {"type": "string"},
                "language": {"type": "string"},
                "delivery_method": {"type": "string"},
                "location_method": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "is_stat": {"type": "boolean"},
                "encounter_notes": {"type": "string"},
                "status": {"type": "string"},
                "requested_at": {"type": "string"},
                "accepted_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "cancelled_at": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "offset": {"type": "integer"},
                "limit": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
