package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lingua Scheduler API",
        "description": "Class session scheduling for a language center",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Schedules", "description": "Batch generation, proposals and weekly views"},
        {"name": "Sessions", "description": "Manual class session management"},
        {"name": "Metrics", "description": "Operational counters"}
    ],
    "paths": {
        "/schedules/generate": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Generate a schedule proposal",
                "description": "Preview only. Nothing is persisted until the proposal is applied.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Weekly target cannot be met", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Class is missing a teacher or student cap", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/apply": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Persist a proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Proposal not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/proposals/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Fetch a stored proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/suggestions": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Suggest free placements",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SuggestPlacementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/weekly": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Weekly schedule view",
                "parameters": [
                    {"name": "start_date", "in": "query", "required": true, "type": "string"},
                    {"name": "end_date", "in": "query", "required": true, "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "user_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/weekly/export": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Export the weekly schedule",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "start_date", "in": "query", "required": true, "type": "string"},
                    {"name": "end_date", "in": "query", "required": true, "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "user_id", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/sessions": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Create a class session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get a class session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Sessions"],
                "summary": "Update a class session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Cancel a class session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Scheduler counters snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ConflictMap": {
            "type": "object",
            "additionalProperties": {
                "type": "object",
                "additionalProperties": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "required": ["start_date", "end_date"],
            "properties": {
                "start_date": {"type": "string", "example": "2024-01-01"},
                "end_date": {"type": "string", "example": "2024-01-07"},
                "class_ids": {"type": "array", "items": {"type": "string"}},
                "max_slots_per_session": {"type": "integer"},
                "prefer_morning": {"type": "boolean"},
                "class_conflict_map": {"$ref": "#/definitions/ConflictMap"},
                "teacher_conflict_map": {"$ref": "#/definitions/ConflictMap"}
            }
        },
        "ApplyProposalRequest": {
            "type": "object",
            "properties": {
                "proposal_id": {"type": "string"},
                "proposal": {"type": "object"}
            }
        },
        "CreateSessionRequest": {
            "type": "object",
            "required": ["class_id", "session_date", "slots"],
            "properties": {
                "class_id": {"type": "string"},
                "session_date": {"type": "string"},
                "slots": {"type": "array", "items": {"type": "integer"}},
                "room_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "topic": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "UpdateSessionRequest": {
            "type": "object",
            "properties": {
                "session_date": {"type": "string"},
                "slots": {"type": "array", "items": {"type": "integer"}},
                "room_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "topic": {"type": "string"},
                "notes": {"type": "string"},
                "status": {"type": "string", "enum": ["scheduled", "in_progress", "completed", "cancelled", "postponed"]}
            }
        },
        "SuggestPlacementRequest": {
            "type": "object",
            "required": ["class_id", "session_date", "slots"],
            "properties": {
                "class_id": {"type": "string"},
                "session_date": {"type": "string"},
                "slots": {"type": "array", "items": {"type": "integer"}},
                "teacher_id": {"type": "string"},
                "search_days": {"type": "integer"},
                "max_suggestions": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
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
                "details": {"type": "object"},
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
