// Package docs registers the OpenAPI description served under /swagger.
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
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Create an account and send a verification email", "responses": {"201": {"description": "Created"}, "409": {"description": "Email or username taken"}, "422": {"description": "Validation failed"}, "429": {"description": "Rate limited"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Exchange credentials for an access token", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}, "429": {"description": "Rate limited"}}}},
        "/auth/verify-email": {"get": {"tags": ["auth"], "summary": "Confirm an email address", "parameters": [{"name": "token", "in": "query", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid token"}}}},
        "/auth/forgot-password": {"post": {"tags": ["auth"], "summary": "Send a password reset link", "responses": {"202": {"description": "Accepted"}}}},
        "/auth/reset-password": {"post": {"tags": ["auth"], "summary": "Set a new password with a reset token", "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid token"}}}},
        "/teams": {
            "get": {"tags": ["teams"], "summary": "List teams", "parameters": [{"name": "search", "in": "query", "type": "string"}, {"name": "page", "in": "query", "type": "integer"}, {"name": "limit", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["teams"], "summary": "Create a team owned by the caller", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Name taken"}, "422": {"description": "Validation failed"}}}
        },
        "/teams/{team}": {
            "get": {"tags": ["teams"], "summary": "Get a team by name", "parameters": [{"name": "team", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "patch": {"tags": ["teams"], "summary": "Update team details", "security": [{"BearerAuth": []}], "parameters": [{"name": "team", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}},
            "delete": {"tags": ["teams"], "summary": "Delete a team", "security": [{"BearerAuth": []}], "parameters": [{"name": "team", "in": "path", "type": "string", "required": true}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}}
        },
        "/teams/{team}/members": {"post": {"tags": ["teams"], "summary": "Add a member", "security": [{"BearerAuth": []}], "parameters": [{"name": "team", "in": "path", "type": "string", "required": true}], "responses": {"201": {"description": "Created"}, "409": {"description": "Already a member"}}}},
        "/teams/{team}/transfer": {"post": {"tags": ["teams"], "summary": "Transfer team ownership", "security": [{"BearerAuth": []}], "parameters": [{"name": "team", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}},
        "/servers": {
            "get": {"tags": ["servers"], "summary": "List approved servers", "parameters": [{"name": "search", "in": "query", "type": "string"}, {"name": "category", "in": "query", "type": "string"}, {"name": "tags", "in": "query", "type": "array", "items": {"type": "string"}}, {"name": "version", "in": "query", "type": "string"}, {"name": "online", "in": "query", "type": "boolean"}, {"name": "featured", "in": "query", "type": "boolean"}, {"name": "verified", "in": "query", "type": "boolean"}, {"name": "min_players", "in": "query", "type": "integer"}, {"name": "max_players", "in": "query", "type": "integer"}, {"name": "sort", "in": "query", "type": "string", "enum": ["votes", "players", "newest", "oldest", "name-asc", "name-desc"]}, {"name": "page", "in": "query", "type": "integer"}, {"name": "limit", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}, "422": {"description": "Validation failed"}}},
            "post": {"tags": ["servers"], "summary": "Submit a server listing for moderation", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "422": {"description": "Validation failed"}}}
        },
        "/servers/{server}": {
            "get": {"tags": ["servers"], "summary": "Get a server by slug", "parameters": [{"name": "server", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"tags": ["servers"], "summary": "Delete an owned server", "security": [{"BearerAuth": []}], "parameters": [{"name": "server", "in": "path", "type": "string", "required": true}], "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden"}}}
        },
        "/server-categories": {"get": {"tags": ["taxonomy"], "summary": "List server categories", "responses": {"200": {"description": "OK"}}}},
        "/server-tags": {"get": {"tags": ["taxonomy"], "summary": "List server tags", "responses": {"200": {"description": "OK"}}}},
        "/server-tags/popular": {"get": {"tags": ["taxonomy"], "summary": "Most used tags", "parameters": [{"name": "limit", "in": "query", "type": "integer"}], "responses": {"200": {"description": "OK"}}}},
        "/users/me": {
            "get": {"tags": ["users"], "summary": "Current user", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["users"], "summary": "Update the current profile", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "422": {"description": "Validation failed"}}}
        },
        "/users/{userID}": {"get": {"tags": ["users"], "summary": "Public profile", "parameters": [{"name": "userID", "in": "path", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}},
        "/reports": {"post": {"tags": ["reports"], "summary": "Report a server, user or team", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Open report exists"}}}},
        "/moderation/servers": {"get": {"tags": ["moderation"], "summary": "Servers awaiting moderation", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "403": {"description": "Moderator role required"}}}},
        "/moderation/reports": {"get": {"tags": ["moderation"], "summary": "List reports", "security": [{"BearerAuth": []}], "parameters": [{"name": "status", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}, "403": {"description": "Moderator role required"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Orbis API",
	Description:      "Game server listings and creator teams.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
