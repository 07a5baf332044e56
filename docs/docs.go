// Package docs registers the OpenAPI document served at /openapi.json.
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
		"/api/admin-login": {
			"post": {
				"tags": [
					"admin"
				],
				"summary": "Admin credential login",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin-logout": {
			"post": {
				"tags": [
					"admin"
				],
				"summary": "Admin logout",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin-user": {
			"get": {
				"tags": [
					"admin"
				],
				"summary": "Check the admin session",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin/upload": {
			"post": {
				"tags": [
					"admin"
				],
				"summary": "Upload a PDF and publish it as a material",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin/check": {
			"get": {
				"tags": [
					"admin"
				],
				"summary": "Confirm the caller holds an admin session",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin/purchases": {
			"get": {
				"tags": [
					"admin"
				],
				"summary": "List every purchase with its material and buyer",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin/uploads": {
			"get": {
				"tags": [
					"admin"
				],
				"summary": "List active uploads",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/admin/uploads/{id}": {
			"delete": {
				"tags": [
					"admin"
				],
				"summary": "Delete an upload and retire its material",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/login": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Login with email and password",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/logout": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Logout",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/oidc/callback": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Finish single sign-on",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/oidc/login": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Start single sign-on",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/refresh": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Rotate the token pair",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/register": {
			"post": {
				"tags": [
					"auth"
				],
				"summary": "Register a new user",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/auth/user": {
			"get": {
				"tags": [
					"auth"
				],
				"summary": "Get current user",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/cart": {
			"get": {
				"tags": [
					"cart"
				],
				"summary": "List the caller's cart",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"cart"
				],
				"summary": "Add a material to the cart",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/cart/{materialId}": {
			"delete": {
				"tags": [
					"cart"
				],
				"summary": "Remove a material from the cart",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/download/upload/{uploadId}": {
			"get": {
				"tags": [
					"materials"
				],
				"summary": "Download the file behind an uploaded material",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/materials": {
			"get": {
				"tags": [
					"materials"
				],
				"summary": "List active materials",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/materials/{id}": {
			"get": {
				"tags": [
					"materials"
				],
				"summary": "Get a material",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/materials/{id}/download": {
			"get": {
				"tags": [
					"materials"
				],
				"summary": "Download a purchased material",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/materials/{id}/reviews": {
			"get": {
				"tags": [
					"reviews"
				],
				"summary": "List a material's reviews, newest first",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			},
			"post": {
				"tags": [
					"reviews"
				],
				"summary": "Review a purchased material",
				"responses": {
					"201": {
						"description": "Created"
					}
				}
			}
		},
		"/api/materials/{id}/view": {
			"get": {
				"tags": [
					"materials"
				],
				"summary": "View a purchased material inline",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/purchases": {
			"get": {
				"tags": [
					"payment"
				],
				"summary": "List the caller's purchases",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/api/record-purchase": {
			"post": {
				"tags": [
					"payment"
				],
				"summary": "Record a single purchase (legacy)",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/confirm-success": {
			"post": {
				"tags": [
					"payment"
				],
				"summary": "Verify a completed payment and record purchases",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/create-order": {
			"post": {
				"tags": [
					"payment"
				],
				"summary": "Create a gateway payment order",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/healthz": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Readiness check",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/metrics": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Rate limiter rejections per limiter",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/ping": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Liveness check",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/razorpay-webhook": {
			"post": {
				"tags": [
					"payment"
				],
				"summary": "Gateway webhook",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/robots.txt": {
			"get": {
				"tags": [
					"seo"
				],
				"summary": "robots.txt",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/sitemap.xml": {
			"get": {
				"tags": [
					"seo"
				],
				"summary": "Sitemap",
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		}
	},
	"definitions": {
		"model.ErrorResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Storefront API",
	Description:      "Purchase-gated study material storefront.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
