package mcp

type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func selectionProperties() map[string]any {
	return map[string]any{
		"prompt": map[string]any{
			"type":        "string",
			"description": "Text description of the image to generate",
		},
		"filename": map[string]any{
			"type":        "string",
			"description": "Output filename; a timestamped name is generated when omitted",
		},
		"aspect_ratio": map[string]any{
			"type":        "string",
			"description": "Aspect ratio such as 1:1, 16:9 or 3:4 (default 1:1)",
		},
		"image_size": map[string]any{
			"type":        "string",
			"enum":        []string{"small", "medium", "large", "xlarge"},
			"description": "Output size tier (default large)",
		},
		"model": map[string]any{
			"type":        "string",
			"description": "Exact model key; overrides provider, quality and auto_mode",
		},
		"provider": map[string]any{
			"type":        "string",
			"enum":        []string{"gemini", "openai", "together"},
			"description": "Provider choice; combined with quality it overrides auto_mode",
		},
		"quality": map[string]any{
			"type":        "string",
			"enum":        []string{"pro", "fast"},
			"description": "Quality tier within the chosen provider (default pro)",
		},
		"auto_mode": map[string]any{
			"type":        "string",
			"enum":        []string{"cheapest", "budget", "balanced", "quality", "best"},
			"description": "Cost-tier automatic model selection; lowest precedence",
		},
		"style_hint": map[string]any{
			"type":        "string",
			"enum":        []string{"general", "photo", "illustration", "text", "infographic"},
			"description": "Style preference used to rank auto_mode candidates",
		},
		"title":            map[string]any{"type": "string", "description": "Artifact title for the metadata sidecar"},
		"description":      map[string]any{"type": "string", "description": "Artifact description for the metadata sidecar"},
		"alternative_text": map[string]any{"type": "string", "description": "Accessibility alt text for the metadata sidecar"},
		"caption":          map[string]any{"type": "string", "description": "Caption for the metadata sidecar"},
		"reference_images": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Local paths of reference images (supported models only)",
		},
		"search_grounding": map[string]any{
			"type":        "boolean",
			"description": "Ground the generation with web search (supported models only)",
		},
		"thinking_level": map[string]any{
			"type":        "string",
			"enum":        []string{"minimal", "low", "medium", "high"},
			"description": "Reasoning effort for models that price it",
		},
		"media_resolution": map[string]any{
			"type":        "string",
			"enum":        []string{"low", "medium", "high"},
			"description": "Reference image processing resolution",
		},
	}
}

func toolDefinitions() []toolDefinition {
	generation := selectionProperties()

	estimation := selectionProperties()
	estimation["count"] = map[string]any{
		"type":        "integer",
		"description": "Number of images to price (default 1)",
	}

	return []toolDefinition{
		{
			Name:        "generate_image",
			Description: "Generate one image, save it as PNG with a metadata sidecar, and log the cost.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": generation,
				"required":   []string{"prompt"},
			},
		},
		{
			Name:        "estimate_image_cost",
			Description: "Estimate the USD cost of a generation request without generating anything.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": estimation,
				"required":   []string{},
			},
		},
		{
			Name:        "add_to_batch",
			Description: "Validate and queue a generation request for a later batch run.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": generation,
				"required":   []string{"prompt"},
			},
		},
		{
			Name:        "view_batch_queue",
			Description: "List the queued batch entries in execution order.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "remove_from_batch",
			Description: "Remove a queued entry by 0-based index or by filename. Removing a missing entry is a no-op.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"identifier": map[string]any{
						"type":        "string",
						"description": "Queue index or filename (extension optional)",
					},
				},
				"required": []string{"identifier"},
			},
		},
		{
			Name:        "run_batch",
			Description: "Drain the batch queue, generating every queued image sequentially. Failures are isolated per entry.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"convert_to_webp": map[string]any{
						"type":        "boolean",
						"description": "Also produce a WebP derivative for each generated image",
					},
					"upload_to_wordpress": map[string]any{
						"type":        "boolean",
						"description": "Upload WebP derivatives to the configured WordPress site",
					},
				},
			},
		},
		{
			Name:        "convert_to_webp",
			Description: "Convert every PNG in the images directory that has no WebP sibling yet.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"quality": map[string]any{
						"type":        "integer",
						"description": "WebP quality 1-100 (default from configuration)",
					},
				},
			},
		},
		{
			Name:        "get_generated_webp_images",
			Description: "List WebP files in the images directory, newest first.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "upload_to_wordpress",
			Description: "Upload named files from the images directory to the WordPress media library and record the media ids in their sidecars.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filenames": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Filenames within the images directory",
					},
				},
				"required": []string{"filenames"},
			},
		},
		{
			Name:        "query_generation_log",
			Description: "Query generation history by filename and/or date range, with the total cost of the matches.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filename": map[string]any{
						"type":        "string",
						"description": "Match records for this filename (extension optional)",
					},
					"start_date": map[string]any{
						"type":        "string",
						"description": "Inclusive start date, YYYY-MM-DD",
					},
					"end_date": map[string]any{
						"type":        "string",
						"description": "Inclusive end date, YYYY-MM-DD",
					},
				},
			},
		},
		{
			Name:        "post_to_linkedin",
			Description: "Publish a text or link post to LinkedIn as the configured author.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"commentary": map[string]any{
						"type":        "string",
						"description": "Post text",
					},
					"link_url": map[string]any{
						"type":        "string",
						"description": "URL to attach; its title and preview come from the page itself",
					},
					"visibility": map[string]any{
						"type":        "string",
						"enum":        []string{"PUBLIC", "CONNECTIONS"},
						"description": "Audience (default PUBLIC)",
					},
					"draft": map[string]any{
						"type":        "boolean",
						"description": "Create as a draft instead of publishing",
					},
				},
				"required": []string{"commentary"},
			},
		},
		{
			Name:        "comment_on_linkedin_post",
			Description: "Add a comment under an existing LinkedIn post.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"post_id": map[string]any{
						"type":        "string",
						"description": "Post URN or bare share id",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "Comment text",
					},
				},
				"required": []string{"post_id", "message"},
			},
		},
	}
}
