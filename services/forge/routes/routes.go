// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/graphforge/services/forge/contract"
	"github.com/AleutianAI/graphforge/services/forge/dag"
	"github.com/AleutianAI/graphforge/services/forge/handlers"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

func SetupRoutes(router *gin.Engine, toolset *tools.Toolset, executor *dag.Executor,
	store *contract.Store, validator *contract.Validator) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	reg := toolset.Registry()

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/pipeline/run", handlers.RunPipeline(executor, toolset))

		registryGroup := v1.Group("/registry")
		{
			registryGroup.GET("/tools", handlers.ListTools(reg))
			registryGroup.GET("/tools/:toolId/successors", handlers.CompatibleSuccessors(reg))
			registryGroup.GET("/paths", handlers.FindPaths(reg))
			registryGroup.POST("/chain/validate", handlers.ValidateChain(reg))
		}

		contracts := v1.Group("/contracts")
		{
			contracts.GET("", handlers.ListContracts(store))
			contracts.GET("/:toolId", handlers.GetContract(store))
			contracts.POST("/validate", handlers.ValidateContracts(validator, toolset))
		}
	}
}
