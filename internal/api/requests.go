// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/validation"
)

// maxRequestBodyBytes bounds request bodies; attachments are sent by path.
const maxRequestBodyBytes = 1 << 20

// SendMessageRequest is the body of POST /api/v1/messages.
//
// Fields:
//   - RecipientID: phone number or email handle
//   - Text: message text; may be empty only when AttachmentRef is set
//   - AttachmentRef: absolute path of a local file to send
//   - CorrelationID: caller-chosen id; generated when empty
//   - TrackCorrelation: register a pending correlation so the synchronized
//     outbound record carries CorrelationID
type SendMessageRequest struct {
	RecipientID      string `json:"recipient_id" validate:"required,handle"`
	Text             string `json:"text" validate:"required_without=AttachmentRef,max=20000"`
	AttachmentRef    string `json:"attachment_ref" validate:"omitempty,localpath"`
	CorrelationID    string `json:"correlation_id" validate:"omitempty,max=128,printascii"`
	TrackCorrelation bool   `json:"track_correlation"`
}

func (b *SendMessageRequest) toSendRequest() models.SendRequest {
	return models.SendRequest{
		RecipientID:   b.RecipientID,
		Text:          b.Text,
		AttachmentRef: b.AttachmentRef,
		CorrelationID: b.CorrelationID,
	}
}

// CorrelationRequest is the body of POST /api/v1/correlations.
type CorrelationRequest struct {
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=128,printascii"`
	RecipientID   string `json:"recipient_id" validate:"required,handle"`
	Text          string `json:"text" validate:"required,max=20000"`
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// it writes the error response and returns false.
func decodeAndValidate(rw *ResponseWriter, w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		rw.BadRequest(decodeErrorMessage(err))
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		rw.BadRequest("request body is empty")
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rw.BadRequest(decodeErrorMessage(err))
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

func decodeErrorMessage(err error) string {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
	default:
		return "invalid JSON body: " + err.Error()
	}
}
