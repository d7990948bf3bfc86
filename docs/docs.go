// Package docs registra el documento OpenAPI que sirve /swagger/*.
// Regenerar con: swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Liveness", "responses": {"200": {"description": "ok"}}}
        },
        "/medications": {
            "get": {
                "tags": ["medications"], "summary": "Listar medicaciones con sus tomas",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/medications.MedicationResponse"}}},
                    "401": {"description": "unauthorized"},
                    "503": {"description": "backend unavailable"}
                }
            },
            "post": {
                "tags": ["medications"], "summary": "Crear medicación",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/medications.createMedicationRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/medications.MedicationResponse"}},
                    "400": {"description": "invalid input"},
                    "409": {"description": "this record already exists"}
                }
            }
        },
        "/medications/{medicationID}": {
            "patch": {
                "tags": ["medications"], "summary": "Actualizar medicación",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "string", "name": "medicationID", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/medications.updateMedicationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/medications.MedicationResponse"}},
                    "404": {"description": "not found or access denied"}
                }
            },
            "delete": {
                "tags": ["medications"], "summary": "Borrar medicación",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "medicationID", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "not found or access denied"},
                    "409": {"description": "record is referenced by other data"}
                }
            }
        },
        "/medications/{medicationID}/doses": {
            "post": {
                "tags": ["doses"], "summary": "Marcar toma (optimista)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"type": "string", "name": "medicationID", "in": "path", "required": true},
                    {"in": "body", "name": "body", "schema": {"$ref": "#/definitions/doses.markTakenRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "404": {"description": "not found or access denied"},
                    "503": {"description": "backend unavailable"}
                }
            }
        },
        "/doses/photo-uploads": {
            "post": {
                "tags": ["doses"], "summary": "URL prefirmada para la foto de una toma",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "unsupported content type"}, "501": {"description": "photo uploads are not configured"}}
            }
        },
        "/me/today": {
            "get": {
                "tags": ["adherence"], "summary": "Medicaciones de hoy y progreso",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "tz", "in": "query", "description": "Zona IANA (default UTC)"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/me/adherence": {
            "get": {
                "tags": ["adherence"], "summary": "Estadísticas de adherencia (30 días) y alertas",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "tz", "in": "query", "description": "Zona IANA (default UTC)"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.AdherenceResponse"}}}
            }
        },
        "/me/caretakers": {
            "get": {"tags": ["caregivers"], "summary": "Grants del paciente", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["caregivers"], "summary": "Invitar cuidador", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "400": {"description": "invalid input"}}}
        },
        "/me/patients": {
            "get": {
                "tags": ["caregivers"], "summary": "Grants del cuidador",
                "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "status", "in": "query", "description": "CSV: invited,active,revoked"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/grants/{grantID}/accept": {
            "post": {"tags": ["caregivers"], "summary": "Aceptar invitación", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "grantID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "not found or access denied"}}}
        },
        "/grants/{grantID}/revoke": {
            "post": {"tags": ["caregivers"], "summary": "Revocar acceso", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "grantID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "not found or access denied"}}}
        },
        "/patients/{patientID}/medications": {
            "get": {"tags": ["caregivers"], "summary": "Medicaciones de un paciente (medications:read)", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "patientID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "not found or access denied"}}}
        },
        "/patients/{patientID}/adherence": {
            "get": {"tags": ["caregivers"], "summary": "Adherencia de un paciente (adherence:read)", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "name": "patientID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "not found or access denied"}}}
        },
        "/ws": {
            "get": {"tags": ["realtime"], "summary": "Push de cambios en tiempo real",
                "parameters": [{"type": "string", "name": "access_token", "in": "query"}],
                "responses": {"101": {"description": "Switching Protocols"}, "401": {"description": "unauthorized"}}}
        }
    },
    "definitions": {
        "medications.DoseLogResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "medication_id": {"type": "string"},
                "user_id": {"type": "string"},
                "taken_at": {"type": "string"},
                "notes": {"type": "string"},
                "photo_url": {"type": "string"},
                "created_at": {"type": "string"},
                "provisional": {"type": "boolean"}
            }
        },
        "medications.MedicationResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "name": {"type": "string"},
                "dosage": {"type": "string"},
                "frequency": {"type": "string", "enum": ["once_daily", "twice_daily", "three_times_daily", "four_times_daily", "as_needed", "weekly"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "medication_logs": {"type": "array", "items": {"$ref": "#/definitions/medications.DoseLogResponse"}}
            }
        },
        "medications.createMedicationRequest": {
            "type": "object",
            "required": ["name", "dosage", "frequency"],
            "properties": {
                "name": {"type": "string", "maxLength": 100},
                "dosage": {"type": "string", "maxLength": 50},
                "frequency": {"type": "string"}
            }
        },
        "medications.updateMedicationRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "dosage": {"type": "string"},
                "frequency": {"type": "string"}
            }
        },
        "doses.markTakenRequest": {
            "type": "object",
            "properties": {
                "taken_at": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"},
                "photo_url": {"type": "string"}
            }
        },
        "doses.AdherenceResponse": {
            "type": "object",
            "properties": {
                "total_days": {"type": "integer"},
                "taken_days": {"type": "integer"},
                "adherence_percentage": {"type": "integer"},
                "current_streak": {"type": "integer"},
                "missed_days": {"type": "integer"},
                "as_of": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Medication Adherence API",
	Description:      "Registro de medicaciones, tomas y adherencia para pacientes y cuidadores.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
