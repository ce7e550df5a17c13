// Package utils holds the JSON envelope every endpoint answers with.
package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope shared by success and error responses.
// RequestID echoes the correlation id so clients can quote it in reports.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

const (
	defaultSuccessMessage = "success"
	defaultErrorMessage   = "error"
	// correlationLocal mirrors the local set by the correlation middleware.
	correlationLocal = "correlation_id"
)

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers with a success envelope and the given status.
// A zero status means 200.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return write(c, status, APIResponse{
		Success: true,
		Data:    data,
		Message: orDefault(message, defaultSuccessMessage),
	})
}

// SendError answers with an error envelope and no details.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail answers with an error envelope carrying optional details, such as the
// offending fields of a validation failure.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return write(c, status, APIResponse{
		Message: orDefault(message, defaultErrorMessage),
		Details: details,
	})
}

func write(c *fiber.Ctx, status int, body APIResponse) error {
	if id, ok := c.Locals(correlationLocal).(string); ok {
		body.RequestID = id
	}
	return c.Status(status).JSON(body)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
