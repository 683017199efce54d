// Package wire defines the JSON and server-sent event shapes shared by the
// event server and the feed client.
package wire

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxContentBytes is the largest message content the wire accepts. The
// server may be configured lower.
const MaxContentBytes = 16 << 10

// Message is a comment as it travels over HTTP and SSE.
//
// TS is the creation time in Unix milliseconds, assigned by the server.
type Message struct {
	ID      string `json:"id" validate:"required,max=64"`
	Content string `json:"content" validate:"required,max=16384"`
	TS      int64  `json:"ts" validate:"gte=0"`
}

// Time returns TS as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.TS)
}

// TokenResponse is the body of GET /token.
type TokenResponse struct {
	OK        bool   `json:"ok"`
	Token     string `json:"token" validate:"required"`
	ExpiresIn int    `json:"expires_in" validate:"gt=0"` // seconds
}

// ListResponse is the body of GET /messages.
type ListResponse struct {
	OK    bool      `json:"ok"`
	Items []Message `json:"items" validate:"dive"`
}

// PostRequest is the body of POST /messages.
type PostRequest struct {
	Content string `json:"content" validate:"required,max=16384"`
}

// PostResponse is the body of a successful POST /messages.
//
// A "!delete <id>" post is answered with a DeleteResponse instead, so
// Item is empty and Deleted is set in that case.
type PostResponse struct {
	OK      bool     `json:"ok"`
	Item    *Message `json:"item,omitempty"`
	Deleted *bool    `json:"deleted,omitempty"`
}

// DeleteResponse is the body of DELETE /messages/:id.
type DeleteResponse struct {
	OK      bool `json:"ok"`
	Deleted bool `json:"deleted"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// DeletePayload is the data of a "delete" event.
type DeletePayload struct {
	ID string `json:"id" validate:"required"`
}

// TickPayload is the data of "hello" and "ping" events.
type TickPayload struct {
	TS int64 `json:"ts"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks v against its struct tags.
func Validate(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
