// Package docs registers the Swagger description served at /swagger.
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
    "paths": {
        "/documents": {
            "get": {
                "summary": "List documents of the calling tenant",
                "parameters": [
                    {"$ref": "#/parameters/tenant"},
                    {"type": "string", "enum": ["active", "trashed"], "name": "status", "in": "query"},
                    {"type": "integer", "default": 10, "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/DocumentList"}}}
            },
            "post": {
                "summary": "Upload a document through the API",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"$ref": "#/parameters/tenant"},
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "name", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Document"}},
                    "409": {"description": "Document quota exceeded", "schema": {"$ref": "#/definitions/Error"}},
                    "413": {"description": "Storage quota exceeded", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Storage temporarily unavailable", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/documents/uploads": {
            "post": {
                "summary": "Pre-check quota and get a direct upload grant",
                "parameters": [{"$ref": "#/parameters/tenant"}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/documents/uploads/{id}/commit": {
            "post": {
                "summary": "Record a document uploaded through a grant",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/Document"}}}
            }
        },
        "/documents/{id}": {
            "get": {
                "summary": "Get a document",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}}
            },
            "patch": {
                "summary": "Rename a document",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}}
            },
            "delete": {
                "summary": "Delete a document; its bytes are removed asynchronously",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/documents/{id}/content": {
            "get": {
                "summary": "Download the document as an attachment",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "summary": "Replace the document content",
                "consumes": ["multipart/form-data"],
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}}
            }
        },
        "/documents/{id}/download-url": {
            "get": {
                "summary": "Issue a time-limited download grant",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/documents/{id}/trash": {
            "post": {
                "summary": "Move a document to the trash",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}}
            }
        },
        "/documents/{id}/restore": {
            "post": {
                "summary": "Restore a trashed document",
                "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}}
            }
        },
        "/quota": {
            "get": {
                "summary": "Quota summary of the calling tenant",
                "parameters": [{"$ref": "#/parameters/tenant"}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "parameters": {
        "tenant": {"type": "string", "name": "X-Tenant-ID", "in": "header", "required": true},
        "id": {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}
    },
    "definitions": {
        "Document": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "tenant_id": {"type": "string"},
                "name": {"type": "string"},
                "original_filename": {"type": "string"},
                "current_version_id": {"type": "string"},
                "status": {"type": "string", "enum": ["active", "trashed"]},
                "file_size_bytes": {"type": "integer"},
                "content_type": {"type": "string"},
                "storage_path": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "DocumentList": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/Document"}},
                "total": {"type": "integer"}
            }
        },
        "Error": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "hint": {"type": "string"},
                        "retryable": {"type": "boolean"}
                    }
                }
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
	Title:            "DocVault API",
	Description:      "Multi-tenant document storage with quotas and search reindexing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
