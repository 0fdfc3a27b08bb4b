// Package docs registers the OpenAPI description served under /swagger.
// Regenerate the full document from handler annotations with
// `swag init -g cmd/server/main.go -o internal/api/docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register a new user"}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Login"}},
        "/auth/profile": {"get": {"tags": ["auth"], "summary": "Current user", "security": [{"BearerAuth": []}]}},
        "/bugs": {
            "get": {"tags": ["bugs"], "summary": "List bugs", "security": [{"BearerAuth": []}]},
            "post": {"tags": ["bugs"], "summary": "Report a bug", "security": [{"BearerAuth": []}]}
        },
        "/bugs/stats": {"get": {"tags": ["bugs"], "summary": "Bug counts by status and priority", "security": [{"BearerAuth": []}]}},
        "/bugs/{id}": {
            "get": {"tags": ["bugs"], "summary": "Get a bug with its comments", "security": [{"BearerAuth": []}]},
            "put": {"tags": ["bugs"], "summary": "Update a bug", "security": [{"BearerAuth": []}]},
            "delete": {"tags": ["bugs"], "summary": "Delete a bug and its comments", "security": [{"BearerAuth": []}]}
        },
        "/bugs/{id}/comments": {"post": {"tags": ["bugs"], "summary": "Comment on a bug", "security": [{"BearerAuth": []}]}},
        "/users": {"get": {"tags": ["users"], "summary": "List users", "security": [{"BearerAuth": []}]}},
        "/users/assignees": {"get": {"tags": ["users"], "summary": "Users available as assignees", "security": [{"BearerAuth": []}]}},
        "/users/{id}": {
            "get": {"tags": ["users"], "summary": "Get a user", "security": [{"BearerAuth": []}]},
            "put": {"tags": ["users"], "summary": "Update a user", "security": [{"BearerAuth": []}]},
            "delete": {"tags": ["users"], "summary": "Delete a user", "security": [{"BearerAuth": []}]}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "Bug Tracker API",
	Description:      "Bugs, comments and users with read-through cached listings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
