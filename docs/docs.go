// Package docs holds the Swagger document served under /swagger/. It mirrors
// the swag annotations on the pkg/api handlers and must be updated with them.
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
        "/cart": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "summary": "Get cart",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.cartResponse"}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "summary": "Clear cart",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.cartResponse"}}
                }
            }
        },
        "/cart/items": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Add item",
                "parameters": [
                    {"description": "Product", "name": "item", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.addItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.cartResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/cart/items/{id}": {
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Update item amount",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true},
                    {"description": "Amount", "name": "amount", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.updateItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.cartResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "summary": "Remove item",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.cartResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/login": {
            "post": {
                "description": "Authenticates user and sets session cookie",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Login",
                "parameters": [
                    {"description": "Credentials", "name": "creds", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.loginRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/logout": {
            "post": {
                "summary": "Logout",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get product",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cart.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/stock/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get stock",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cart.StockInfo"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.addItemRequest": {
            "type": "object",
            "properties": {"productId": {"type": "integer"}}
        },
        "api.cartResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/cart.LineItem"}},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/cart.Message"}}
            }
        },
        "api.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "integer"},
                "productId": {"type": "integer"}
            }
        },
        "api.loginRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "api.updateItemRequest": {
            "type": "object",
            "properties": {"amount": {"type": "integer"}}
        },
        "cart.LineItem": {
            "type": "object",
            "properties": {
                "amount": {"type": "integer"},
                "id": {"type": "integer"},
                "image": {"type": "string"},
                "price": {"type": "number"},
                "title": {"type": "string"}
            }
        },
        "cart.Message": {
            "type": "object",
            "properties": {
                "kind": {"type": "integer"},
                "productId": {"type": "integer"},
                "text": {"type": "string"}
            }
        },
        "cart.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "image": {"type": "string"},
                "price": {"type": "number"},
                "title": {"type": "string"}
            }
        },
        "cart.StockInfo": {
            "type": "object",
            "properties": {
                "amount": {"type": "integer"},
                "id": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8443",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "cartflow API",
	Description:      "Per-session shopping carts validated against product stock",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
