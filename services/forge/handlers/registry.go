// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// ListTools handles GET /v1/registry/tools.
func ListTools(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		descriptors := reg.List()
		c.JSON(http.StatusOK, gin.H{
			"count": len(descriptors),
			"tools": descriptors,
		})
	}
}

// FindPaths handles GET /v1/registry/paths?from=TEXT&to=GRAPH.
//
// Description:
//
//	Returns every acyclic transformation chain from one data type to
//	another, plus the shortest one. max_length bounds the search depth.
func FindPaths(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := datatype.Parse(c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
			return
		}
		to, err := datatype.Parse(c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
			return
		}

		maxLength := registry.DefaultMaxPathLength
		if raw := c.Query("max_length"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "max_length must be a positive integer"})
				return
			}
			maxLength = parsed
		}

		paths, err := reg.FindAllPaths(from, to, maxLength)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var shortest registry.Path
		if len(paths) > 0 {
			shortest = paths[0]
			for _, p := range paths[1:] {
				if len(p) < len(shortest) {
					shortest = p
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"from":     from,
			"to":       to,
			"count":    len(paths),
			"paths":    paths,
			"shortest": shortest,
		})
	}
}

// CompatibleSuccessors handles GET /v1/registry/tools/:toolId/successors.
func CompatibleSuccessors(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		toolID := c.Param("toolId")
		successors, err := reg.CompatibleSuccessors(toolID)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, registry.ErrToolNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tool_id":    toolID,
			"count":      len(successors),
			"successors": successors,
		})
	}
}

// ChainRequest is a proposed tool sequence to check for type continuity.
type ChainRequest struct {
	Chain []string `json:"chain"`
}

// ValidateChain handles POST /v1/registry/chain/validate.
func ValidateChain(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request ChainRequest
		if err := c.BindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := reg.ValidateChain(request.Chain); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"valid": false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}
