// Copyright (C) 2025 ConvoGuard (engineering@convoguard.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ConvoGuardAI/ConvoGuard/pkg/model"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/handlers"
	"github.com/ConvoGuardAI/ConvoGuard/services/inference/observability"
)

func SetupRoutes(router *gin.Engine, chain *model.Chain, escalator handlers.Escalator,
	metrics *observability.InferenceMetrics) {

	router.GET("/health", handlers.HealthCheck(chain))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/classify", handlers.Classify(chain, escalator, metrics))
		v1.POST("/classify/batch", handlers.ClassifyBatch(chain, escalator, metrics))
	}

	// Unversioned aliases kept for clients of the original deployment.
	router.POST("/classify", handlers.Classify(chain, escalator, metrics))
	router.POST("/api/classify", handlers.Classify(chain, escalator, metrics))
}
