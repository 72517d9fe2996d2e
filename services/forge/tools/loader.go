// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/AleutianAI/graphforge/services/forge/datatype"
	"github.com/AleutianAI/graphforge/services/forge/pipeline"
	"github.com/AleutianAI/graphforge/services/forge/registry"
)

// maxLoadSize caps loaded files at 16MB to bound pipeline state growth.
const maxLoadSize = 16 << 20

// TextLoader is a pure source producing TEXT from an inline parameter or
// a file path.
type TextLoader struct {
	Base
}

// NewTextLoader creates the text_loader tool.
func NewTextLoader() *TextLoader {
	return &TextLoader{
		Base: Base{Desc: registry.Descriptor{
			ToolID:     "text_loader",
			Name:       "Text Loader",
			Category:   registry.CategoryIngestion,
			OutputType: datatype.Text,
			Weight:     1.0,
		}},
	}
}

// Process loads text from the "text" parameter, or from the file named by
// the "path" parameter.
func (t *TextLoader) Process(_ context.Context, _ *pipeline.State, params map[string]any) (*Output, error) {
	if text, ok := stringParam(params, "text"); ok {
		return &Output{
			Payload:  text,
			DataType: datatype.Text,
			Summary:  fmt.Sprintf("loaded %d bytes of inline text", len(text)),
		}, nil
	}

	path, ok := stringParam(params, "path")
	if !ok {
		return nil, fmt.Errorf("%w: text_loader needs a \"text\" or \"path\" parameter", ErrBadParameter)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxLoadSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, cap is %d", ErrBadParameter, path, info.Size(), maxLoadSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Output{
		Payload:  string(raw),
		DataType: datatype.Text,
		Summary:  fmt.Sprintf("loaded %d bytes from %s", len(raw), path),
		Metadata: map[string]any{"source": path},
	}, nil
}
