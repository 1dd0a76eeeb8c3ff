package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Estudio Pilates Scheduling API",
        "description": "Class session booking, waitlist, and attendance service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and profile"},
        {"name": "Sessions", "description": "Class session catalog"},
        {"name": "Bookings", "description": "Seat reservation and attendance"},
        {"name": "Waitlist", "description": "FIFO waitlist"}
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
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions in a window",
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"},
                    {"name": "location_id", "in": "query", "type": "string"},
                    {"name": "modality_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Publish a session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Instructor overlap"}
                }
            }
        },
        "/sessions/available": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Bookable sessions with remaining seats",
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"},
                    {"name": "location_id", "in": "query", "type": "string"},
                    {"name": "modality_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete session without enrollments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Active enrollments exist"}
                }
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/capacity": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Change capacity (never evicts)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CapacityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/schedule": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Reschedule session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/roster": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Attendance sheet (json, csv, or pdf)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/sessions/{id}/waitlist": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "Session queue in promotion order",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a seat or join the waitlist",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Enrolled or waitlisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Session not found"},
                    "409": {"description": "Already enrolled or session cancelled"}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Get enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Bookings"],
                "summary": "Cancel a booked seat, promoting the waitlist head",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CancelResult"}},
                    "403": {"description": "Not the member or staff"},
                    "404": {"description": "Enrollment missing or already cancelled"}
                }
            }
        },
        "/enrollments/{id}/attendance": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Record attendance outcome",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Too early or invalid transition"}
                }
            }
        },
        "/waitlist/{id}/position": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "1-based queue position",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Entry not found"}
                }
            }
        },
        "/waitlist/{id}": {
            "delete": {
                "tags": ["Waitlist"],
                "summary": "Withdraw from a waitlist",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/me/enrollments": {
            "get": {
                "tags": ["Bookings"],
                "summary": "The caller's enrollments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/me/waitlist": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "The caller's waitlist entries",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "starts_at": {"type": "string"},
                "duration_min": {"type": "integer"},
                "location_id": {"type": "string"},
                "modality_id": {"type": "string"},
                "instructor_id": {"type": "string"},
                "substitute_id": {"type": "string"},
                "capacity": {"type": "integer"},
                "kind": {"type": "string"}
            },
            "required": ["starts_at", "duration_min", "location_id", "modality_id", "instructor_id", "capacity"]
        },
        "RescheduleSessionRequest": {
            "type": "object",
            "properties": {
                "starts_at": {"type": "string"},
                "duration_min": {"type": "integer"}
            },
            "required": ["starts_at", "duration_min"]
        },
        "CapacityRequest": {
            "type": "object",
            "properties": {
                "capacity": {"type": "integer"}
            },
            "required": ["capacity"]
        },
        "BookRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "member_id": {"type": "string"}
            },
            "required": ["session_id"]
        },
        "AttendanceRequest": {
            "type": "object",
            "properties": {
                "outcome": {"type": "string", "enum": ["PRESENT", "ABSENT_WITH_MAKEUP", "ABSENT_WITHOUT_MAKEUP"]}
            },
            "required": ["outcome"]
        },
        "CancelResult": {
            "type": "object",
            "properties": {
                "freed": {"type": "boolean"},
                "promoted": {"type": "string"}
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
