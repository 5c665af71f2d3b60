package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMS Core API",
        "description": "School administration core: admissions, student lifecycle, bulk import, and promotions.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login and session info"},
        {"name": "Admissions", "description": "Application intake and review workflow"},
        {"name": "Students", "description": "Student records and activation lifecycle"},
        {"name": "Imports", "description": "Background CSV student import"},
        {"name": "Promotions", "description": "Batch class promotions"}
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
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
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
        "/admissions": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Submit an admission application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Application created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"}
                }
            },
            "get": {
                "tags": ["Admissions"],
                "summary": "List admission applications",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "session_id", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admissions/waitlist": {
            "get": {
                "tags": ["Admissions"],
                "summary": "List the waitlist in position order",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admissions/{id}": {
            "get": {
                "tags": ["Admissions"],
                "summary": "Get application detail",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/admissions/{id}/history": {
            "get": {
                "tags": ["Admissions"],
                "summary": "Review history",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admissions/{id}/payment-reference": {
            "put": {
                "tags": ["Admissions"],
                "summary": "Record payment reference",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Wrong status"}
                }
            }
        },
        "/admissions/{id}/verify-payment": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Verify application fee payment",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "No reference on file"}}
            }
        },
        "/admissions/{id}/review": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Move application into review",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "412": {"description": "Payment not verified"}}
            }
        },
        "/admissions/{id}/approve": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Approve application",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Wrong status or missing placement"}}
            }
        },
        "/admissions/{id}/reject": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Reject application",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid reason"}}
            }
        },
        "/admissions/{id}/waitlist": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Waitlist application",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Wrong status"}}
            }
        },
        "/admissions/{id}/promote": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Approve waitlisted application",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Class at capacity"}}
            }
        },
        "/admissions/{id}/accept": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Record offer acceptance",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not approved"}}
            }
        },
        "/admissions/{id}/letter": {
            "get": {
                "tags": ["Admissions"],
                "summary": "Download admission letter PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "PDF document"}}
            }
        },
        "/admissions/{id}/create-student": {
            "post": {
                "tags": ["Students"],
                "summary": "Create student from approved application",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"description": "Student created"}, "409": {"description": "Already created or not approved"}}
            }
        },
        "/students": {
            "post": {
                "tags": ["Students"],
                "summary": "Register student manually",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Student created"}}
            },
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/active": {
            "get": {
                "tags": ["Students"],
                "summary": "List the active reporting bucket",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/inactive": {
            "get": {
                "tags": ["Students"],
                "summary": "List every student that is not active",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student with activation state",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student record",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/{id}/activate": {
            "post": {
                "tags": ["Students"],
                "summary": "Activate student",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Requirements missing"}}
            }
        },
        "/students/{id}/status": {
            "put": {
                "tags": ["Students"],
                "summary": "Change lifecycle status",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Transition not allowed"}}
            }
        },
        "/students/bulk-create": {
            "post": {
                "tags": ["Students"],
                "summary": "Create students from applications",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Per-item results"}}
            }
        },
        "/students/bulk-activate": {
            "post": {
                "tags": ["Students"],
                "summary": "Activate a set of students",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Per-item results"}}
            }
        },
        "/imports": {
            "post": {
                "tags": ["Imports"],
                "summary": "Upload CSV for background import",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "required": true, "type": "file"}],
                "responses": {"202": {"description": "Import queued"}, "400": {"description": "Not a CSV"}}
            }
        },
        "/imports/{id}": {
            "get": {
                "tags": ["Imports"],
                "summary": "Poll import progress",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/imports/{id}/failures": {
            "get": {
                "tags": ["Imports"],
                "summary": "Download failed-row report",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "CSV document"}, "404": {"description": "Expired"}}
            }
        },
        "/promotions": {
            "post": {
                "tags": ["Promotions"],
                "summary": "Queue batch promotion",
                "security": [{"BearerAuth": []}],
                "responses": {"202": {"description": "Batch queued"}, "400": {"description": "Invalid payload"}}
            }
        },
        "/promotions/{id}": {
            "get": {
                "tags": ["Promotions"],
                "summary": "Poll promotion batch",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/promotions/{id}/logs": {
            "get": {
                "tags": ["Promotions"],
                "summary": "Per-student promotion log",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
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
                "pagination": {"$ref": "#/definitions/Pagination"}
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
