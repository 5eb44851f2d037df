// Copyright (C) 2026 LinkForge Labs (eng@linkforge.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/linkforge-seo/linkforge/pkg/validation"
)

// init registers the "ident" binding rule so page identifiers in request
// bodies are rejected at bind time with the same shape rules the storage key
// space relies on.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
			return validation.ValidatePageID(fl.Field().String()) == nil
		})
	}
}
