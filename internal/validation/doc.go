// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package validation validates API request structs using go-playground/validator v10.

A single validator instance is built once and shared; it caches struct
metadata and is safe for concurrent use. Failures are translated into
human-readable messages and can be converted into the API's
VALIDATION_ERROR response shape.

# Custom Tags

	handle     recipient handle: an email address, or a phone number of
	           4 to 20 digits with an optional leading '+'. Spaces, dashes,
	           dots and parentheses are ignored.
	localpath  absolute filesystem path without NUL bytes

# Usage

	type sendBody struct {
	    RecipientID   string `validate:"required,handle"`
	    Text          string `validate:"required_without=AttachmentRef,max=20000"`
	    AttachmentRef string `validate:"omitempty,localpath"`
	}

	if verr := validation.ValidateStruct(&body); verr != nil {
	    apiErr := verr.ToAPIError()
	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
	    return
	}

# Error Format

A single failure keeps the field, tag and rejected value in Details.
Multiple failures are joined into one message and listed under
Details["fields"].
*/
package validation
