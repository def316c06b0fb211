// Package docs registers the OpenAPI description of the portsight API with swag
// so gin-swagger can serve it under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "description": "REST API for queueing single-host TCP connect scans with banner grabbing and service fingerprinting.",
    "title": "portsight API",
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "1.0"
  },
  "basePath": "/api/v1",
  "schemes": [
    "http"
  ],
  "securityDefinitions": {
    "ApiKeyAuth": {
      "type": "apiKey",
      "name": "Authorization",
      "in": "header",
      "description": "Bearer <API_KEY>"
    }
  },
  "paths": {
    "/scans": {
      "post": {
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "summary": "Create a new scan task",
        "description": "Queue a TCP connect scan of one target over an inclusive port range and return the task id.",
        "operationId": "createScan",
        "tags": ["Scans"],
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {
            "description": "Scan request parameters",
            "name": "scanRequest",
            "in": "body",
            "required": true,
            "schema": {"$ref": "#/definitions/CreateScanRequest"}
          }
        ],
        "responses": {
          "202": {"description": "Scan accepted", "schema": {"$ref": "#/definitions/ScanAcceptedResponse"}},
          "400": {"description": "Malformed JSON body or failed validation", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "401": {"description": "Missing or incorrect API key", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Task could not be stored or queued", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/scans/{id}": {
      "get": {
        "produces": ["application/json"],
        "summary": "Get scan status and results",
        "description": "Retrieve a snapshot of a scan task. Once completed, findings lists every open port ascending by port.",
        "operationId": "getScan",
        "tags": ["Scans"],
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {
            "type": "string",
            "format": "uuid",
            "description": "Scan Task ID (UUID v4)",
            "name": "id",
            "in": "path",
            "required": true
          }
        ],
        "responses": {
          "200": {"description": "Current task snapshot", "schema": {"$ref": "#/definitions/ScanTaskResponse"}},
          "400": {"description": "Malformed task identifier", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "401": {"description": "Missing or incorrect API key", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "404": {"description": "Task does not exist or has expired", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Task could not be loaded", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    }
  },
  "definitions": {
    "CreateScanRequest": {
      "type": "object",
      "required": ["target", "end_port"],
      "properties": {
        "target": {"type": "string", "example": "scanme.nmap.org"},
        "start_port": {"type": "integer", "minimum": 0, "maximum": 65535, "example": 20},
        "end_port": {"type": "integer", "minimum": 0, "maximum": 65535, "example": 443},
        "timeout_ms": {"type": "integer", "example": 500}
      }
    },
    "ScanAcceptedResponse": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid", "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"},
        "status": {"type": "string", "enum": ["pending"], "example": "pending"}
      }
    },
    "ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {"type": "string", "example": "task not found"}
      }
    },
    "Finding": {
      "type": "object",
      "properties": {
        "port": {"type": "integer", "example": 22},
        "service": {"type": "string", "example": "SSH"},
        "banner": {"type": "string", "example": "SSH-2.0-OpenSSH_8.9"}
      }
    },
    "ScanTaskResponse": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid"},
        "status": {"type": "string", "enum": ["pending", "running", "completed", "failed"]},
        "target": {"type": "string"},
        "start_port": {"type": "integer"},
        "end_port": {"type": "integer"},
        "timeout_ms": {"type": "integer"},
        "created_at": {"type": "string", "format": "date-time"},
        "completed_at": {"type": "string", "format": "date-time"},
        "error": {"type": "string"},
        "open_ports": {"type": "integer"},
        "findings": {"type": "array", "items": {"$ref": "#/definitions/Finding"}}
      }
    }
  }
}`

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

type swaggerDoc struct{}

func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}
