package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MediDesk API",
        "description": "Appointment scheduling and conflict detection for a small medical office",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Staff login and session management"},
        {"name": "Patients", "description": "Patient records"},
        {"name": "Appointments", "description": "Appointment booking and slot availability"},
        {"name": "Busy Intervals", "description": "Doctor unavailability windows"},
        {"name": "Examinations", "description": "Examination records and prescriptions"},
        {"name": "Medicines", "description": "Medicine catalog"},
        {"name": "Dashboard", "description": "Office overview and exports"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate staff member",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Access and refresh tokens", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rotated token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or revoked refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Refresh token revoked"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Profile of the authenticated user", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/patients": {
            "get": {
                "tags": ["Patients"],
                "summary": "List patients",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string", "description": "Match against name or phone"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated patients", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Patients"],
                "summary": "Register a patient",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePatientRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created patient", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"}
                }
            }
        },
        "/patients/{id}": {
            "get": {
                "tags": ["Patients"],
                "summary": "Fetch a patient",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Patient", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Patients"],
                "summary": "Update a patient",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdatePatientRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated patient", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Patients"],
                "summary": "Delete a patient",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/appointments": {
            "get": {
                "tags": ["Appointments"],
                "summary": "List appointments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["upcoming", "completed", "cancelled"]},
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated appointments", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Appointments"],
                "summary": "Book an appointment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAppointmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Booked appointment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken or doctor unavailable"},
                    "422": {"description": "Outside office hours or off the half-hour grid"}
                }
            }
        },
        "/appointments/availability": {
            "get": {
                "tags": ["Appointments"],
                "summary": "Slot availability for a day",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string", "description": "YYYY-MM-DD"}
                ],
                "responses": {
                    "200": {"description": "Half-hour slots with availability", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{id}": {
            "get": {
                "tags": ["Appointments"],
                "summary": "Fetch an appointment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Appointment detail", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Appointments"],
                "summary": "Reschedule an appointment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateAppointmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated appointment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Target slot conflicts"},
                    "422": {"description": "Appointment is no longer upcoming"}
                }
            },
            "delete": {
                "tags": ["Appointments"],
                "summary": "Delete a cancelled appointment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "422": {"description": "Only cancelled appointments can be deleted"}
                }
            }
        },
        "/appointments/{id}/cancel": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Cancel an appointment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Cancelled appointment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Appointment already completed"}
                }
            }
        },
        "/busy-intervals": {
            "get": {
                "tags": ["Busy Intervals"],
                "summary": "List busy intervals",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "dateFrom", "in": "query", "type": "string"},
                    {"name": "dateTo", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Busy intervals", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Busy Intervals"],
                "summary": "Block a time window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBusyIntervalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created interval", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Overlaps an existing interval"},
                    "422": {"description": "Inverted range, past date, or outside office hours"}
                }
            }
        },
        "/busy-intervals/{id}": {
            "get": {
                "tags": ["Busy Intervals"],
                "summary": "Fetch a busy interval",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Busy interval", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Busy Intervals"],
                "summary": "Update a busy interval",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBusyIntervalRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated interval", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Busy Intervals"],
                "summary": "Delete a busy interval",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/examinations": {
            "get": {
                "tags": ["Examinations"],
                "summary": "List examinations",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "patientId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Paginated examinations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Examinations"],
                "summary": "Record an examination",
                "description": "Completes the matching upcoming appointment when one exists",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExaminationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Recorded examination", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Appointment at that slot was cancelled"}
                }
            }
        },
        "/examinations/{id}": {
            "get": {
                "tags": ["Examinations"],
                "summary": "Fetch an examination with prescriptions",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Examination detail", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Examinations"],
                "summary": "Update an examination",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateExaminationRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated examination", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Examinations"],
                "summary": "Delete an examination",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/medicines": {
            "get": {
                "tags": ["Medicines"],
                "summary": "List medicines",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Medicines", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Medicines"],
                "summary": "Add a medicine",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateMedicineRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created medicine", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/medicines/{id}": {
            "get": {
                "tags": ["Medicines"],
                "summary": "Fetch a medicine",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Medicine", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Medicines"],
                "summary": "Update a medicine",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateMedicineRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated medicine", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Medicines"],
                "summary": "Delete a medicine",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Office dashboard",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Counters plus today's and this month's calendar", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/day-sheet": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Export the day sheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "date", "in": "query", "required": true, "type": "string", "description": "YYYY-MM-DD"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Rendered file"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "CreatePatientRequest": {
            "type": "object",
            "required": ["name", "phone"],
            "properties": {
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "email": {"type": "string"},
                "address": {"type": "string"},
                "date_of_birth": {"type": "string", "example": "1985-03-22"}
            }
        },
        "UpdatePatientRequest": {
            "type": "object",
            "required": ["name", "phone"],
            "properties": {
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "email": {"type": "string"},
                "address": {"type": "string"},
                "date_of_birth": {"type": "string"}
            }
        },
        "CreateAppointmentRequest": {
            "type": "object",
            "required": ["patient_id", "date", "time"],
            "properties": {
                "patient_id": {"type": "string"},
                "date": {"type": "string", "example": "2026-09-14"},
                "time": {"type": "string", "example": "10:30"}
            }
        },
        "UpdateAppointmentRequest": {
            "type": "object",
            "properties": {
                "patient_id": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"}
            }
        },
        "CreateBusyIntervalRequest": {
            "type": "object",
            "required": ["date", "start_time", "end_time"],
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string", "example": "12:00"},
                "end_time": {"type": "string", "example": "13:00"},
                "reason": {"type": "string"}
            }
        },
        "UpdateBusyIntervalRequest": {
            "type": "object",
            "required": ["date", "start_time", "end_time"],
            "properties": {
                "date": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "PrescriptionLine": {
            "type": "object",
            "required": ["medicine_id", "dosage"],
            "properties": {
                "medicine_id": {"type": "string"},
                "dosage": {"type": "string"},
                "duration": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "CreateExaminationRequest": {
            "type": "object",
            "required": ["patient_id", "date", "time", "symptoms", "diagnosis"],
            "properties": {
                "patient_id": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"},
                "symptoms": {"type": "string"},
                "diagnosis": {"type": "string"},
                "prescriptions": {"type": "array", "items": {"$ref": "#/definitions/PrescriptionLine"}}
            }
        },
        "UpdateExaminationRequest": {
            "type": "object",
            "required": ["symptoms", "diagnosis"],
            "properties": {
                "symptoms": {"type": "string"},
                "diagnosis": {"type": "string"},
                "prescriptions": {"type": "array", "items": {"$ref": "#/definitions/PrescriptionLine"}}
            }
        },
        "CreateMedicineRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "side_effects": {"type": "string"}
            }
        },
        "UpdateMedicineRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "side_effects": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "total": {"type": "integer"},
                "totalPages": {"type": "integer"}
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
