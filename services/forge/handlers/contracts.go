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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/graphforge/services/forge/contract"
	"github.com/AleutianAI/graphforge/services/forge/tools"
)

// ListContracts handles GET /v1/contracts.
func ListContracts(store *contract.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		contracts := store.List()
		c.JSON(http.StatusOK, gin.H{
			"count":     len(contracts),
			"contracts": contracts,
		})
	}
}

// GetContract handles GET /v1/contracts/:toolId.
func GetContract(store *contract.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		toolID := c.Param("toolId")
		record, err := store.LoadContract(toolID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, contract.ErrContractNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

// ValidateContracts handles POST /v1/contracts/validate.
//
// Description:
//
//	Runs batch validation of every registered tool against its stored
//	contract. Returns 200 with the report when all pass, 422 with the
//	same report when any contract or implementation is invalid, so CI
//	can gate on the status code alone.
func ValidateContracts(validator *contract.Validator, toolset *tools.Toolset) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := validator.BatchValidate(toolset.Instances())

		status := http.StatusOK
		if !report.Success() {
			status = http.StatusUnprocessableEntity
			slog.Warn("contract validation found failures",
				"total", report.Summary.Total,
				"invalid", report.Summary.Invalid,
			)
		}
		c.JSON(status, report)
	}
}
