// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/model"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/datatypes"
)

// HealthCheck reports serving capability. The service is healthy even
// without the model; model_loaded tells operators which mode it is in.
func HealthCheck(chain *model.Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:      "healthy",
			ModelLoaded: chain.ModelLoaded(),
			Version:     datatypes.Version,
		})
	}
}
