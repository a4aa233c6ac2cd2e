// Package response defines the JSON envelope the settlement API answers
// with. Handlers never build ad-hoc response maps; everything goes through
// Success or Error so callers can rely on one shape.
package response

import "github.com/gofiber/fiber/v2"

// SuccessBody wraps successful results. Metadata carries listing extras such
// as counts and is always an object, never null.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody wraps failures.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail carries the message, the HTTP status echoed into the body and
// optional structured context (e.g. the reconciliation marker on persistence
// failures).
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

// Success answers 200 with the standard envelope. A nil metadata value
// becomes an empty object.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   "success",
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error answers statusCode with the standard error envelope. A nil details
// value becomes an empty object so clients can always index into it.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: "error",
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// Unauthorized answers 401 in the standard error envelope. Used by the
// API-key guard so auth failures look like every other error.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}
