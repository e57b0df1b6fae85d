package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CareBridge API",
        "description": "Care-management dashboard backend with submission-window enforcement",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Sessions and tokens"},
        {"name": "Patients", "description": "Resident roster"},
        {"name": "Charts", "description": "Nightly chart entries (19:00-22:00 facility time)"},
        {"name": "Updates", "description": "Weekly and monthly resident updates"},
        {"name": "Overrides", "description": "Late-submission override windows"},
        {"name": "Reports", "description": "Asynchronous CSV/PDF exports"},
        {"name": "Dashboard", "description": "Facility summary"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate staff member",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/patients": {
            "get": {
                "tags": ["Patients"],
                "summary": "List residents",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Patients"],
                "summary": "Admit resident",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePatientRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/charts": {
            "get": {
                "tags": ["Charts"],
                "summary": "List chart entries",
                "parameters": [
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "late", "in": "query", "type": "boolean"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Charts"],
                "summary": "Submit chart entry",
                "description": "Denied outside the 19:00-22:00 facility-local window unless an override window covers the attempt.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateChartEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Submission window closed"}
                }
            }
        },
        "/api/v1/updates": {
            "get": {
                "tags": ["Updates"],
                "summary": "List resident updates",
                "parameters": [
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "late", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Updates"],
                "summary": "Submit weekly or monthly update",
                "description": "Weekly updates close Friday 12:00; monthly updates are limited to the first three days of the month.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateUpdateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Submission window closed"}
                }
            }
        },
        "/api/v1/overrides": {
            "get": {
                "tags": ["Overrides"],
                "summary": "List override windows",
                "parameters": [
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "grantedTo", "in": "query", "type": "string"},
                    {"name": "activeAt", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Overrides"],
                "summary": "Grant an override window",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOverrideRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing justification or invalid duration"}
                }
            }
        },
        "/api/v1/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue report generation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download finished report",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "404": {"description": "Expired or unknown token"}
                }
            }
        },
        "/api/v1/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Facility dashboard summary",
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
        "CreatePatientRequest": {
            "type": "object",
            "properties": {
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "date_of_birth": {"type": "string"},
                "room_number": {"type": "string"},
                "admitted_at": {"type": "string"},
                "allergies": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["first_name", "last_name", "date_of_birth", "room_number", "admitted_at"]
        },
        "CreateChartEntryRequest": {
            "type": "object",
            "properties": {
                "patient_id": {"type": "string"},
                "category": {"type": "string", "enum": ["BEHAVIOR", "MEALS", "HYGIENE", "SLEEP", "GENERAL"]},
                "observation": {"type": "string"},
                "entry_time": {"type": "string", "description": "Only honoured inside an override window"},
                "justification": {"type": "string"}
            },
            "required": ["patient_id", "category", "observation"]
        },
        "CreateUpdateRequest": {
            "type": "object",
            "properties": {
                "patient_id": {"type": "string"},
                "period": {"type": "string", "enum": ["WEEKLY", "MONTHLY"]},
                "summary": {"type": "string"},
                "concerns": {"type": "string"},
                "submitted_at": {"type": "string"},
                "justification": {"type": "string"}
            },
            "required": ["patient_id", "period", "summary"]
        },
        "CreateOverrideRequest": {
            "type": "object",
            "properties": {
                "patient_id": {"type": "string"},
                "kind": {"type": "string", "enum": ["CHART_ENTRY", "WEEKLY_UPDATE", "MONTHLY_UPDATE"]},
                "granted_to": {"type": "string"},
                "start_at": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "reason": {"type": "string"}
            },
            "required": ["patient_id", "kind", "granted_to", "start_at", "duration_minutes", "reason"]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["late_submissions", "chart_activity", "override_windows", "patient_summary"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "patient_id": {"type": "string"},
                "date_from": {"type": "string"},
                "date_to": {"type": "string"}
            },
            "required": ["type", "format"]
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
