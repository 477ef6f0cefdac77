// Package mcp exposes the image service over the Model Context Protocol:
// newline-delimited JSON-RPC 2.0 on stdin/stdout. Logging goes to stderr so
// the protocol stream stays clean.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/PeeperFrog/peeperfrog-create/internal/batch"
	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
	"github.com/PeeperFrog/peeperfrog-create/internal/linkedin"
	"github.com/PeeperFrog/peeperfrog-create/internal/service"
)

const protocolVersion = "2024-11-05"

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server serves the tool protocol over one reader/writer pair.
type Server struct {
	svc         *service.ImageService
	webpQuality int
	log         *slog.Logger
}

func NewServer(svc *service.ImageService, webpQuality int, log *slog.Logger) *Server {
	return &Server{svc: svc, webpQuality: webpQuality, log: log}
}

// Serve processes requests until EOF or context cancellation. Malformed
// lines produce protocol errors; tool failures produce isError results. The
// loop itself only stops when the peer goes away.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.write(enc, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
			continue
		}

		resp := s.handle(ctx, req)
		if resp == nil {
			continue // notification
		}
		s.write(enc, *resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request stream: %w", err)
	}
	return nil
}

func (s *Server) write(enc *json.Encoder, resp response) {
	if err := enc.Encode(resp); err != nil {
		s.log.Error("write response", "err", err)
	}
}

func (s *Server) handle(ctx context.Context, req request) *response {
	if req.ID == nil {
		// Notifications get no response.
		return nil
	}

	switch req.Method {
	case "initialize":
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "peeperfrog-create", "version": "1.0.0"},
		}}
	case "ping":
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"tools": toolDefinitions()}}
	case "tools/call":
		var params toolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid params"}}
		}
		result := s.callTool(ctx, params)
		return &response{JSONRPC: "2.0", ID: req.ID, Result: result}
	default:
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}}
	}
}

// callTool dispatches one tool invocation. Tool-level failures are encoded
// as isError results so the client can show them to the model instead of
// tearing down the session.
func (s *Server) callTool(ctx context.Context, params toolCallParams) toolResult {
	started := time.Now()
	result, err := s.dispatch(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Error("tool call failed", "tool", params.Name, "err", err, "duration", time.Since(started))
		return toolResult{
			Content: []toolContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		}
	}
	s.log.Info("tool call completed", "tool", params.Name, "duration", time.Since(started))
	return toolResult{Content: []toolContent{{Type: "text", Text: result}}}
}

func (s *Server) dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	switch name {
	case "generate_image":
		return s.generateImage(ctx, args)
	case "estimate_image_cost":
		return s.estimateCost(args)
	case "add_to_batch":
		return s.addToBatch(args)
	case "view_batch_queue":
		return s.viewBatchQueue()
	case "remove_from_batch":
		return s.removeFromBatch(args)
	case "run_batch":
		return s.runBatch(ctx, args)
	case "convert_to_webp":
		return s.convertToWebP(args)
	case "get_generated_webp_images":
		return s.listWebPImages()
	case "upload_to_wordpress":
		return s.uploadToWordPress(ctx, args)
	case "query_generation_log":
		return s.queryGenerationLog(args)
	case "post_to_linkedin":
		return s.postToLinkedIn(ctx, args)
	case "comment_on_linkedin_post":
		return s.commentOnLinkedInPost(ctx, args)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

// generateArgs is the shared argument shape for generation-flavored tools.
type generateArgs struct {
	Prompt          string   `json:"prompt"`
	Filename        string   `json:"filename"`
	AspectRatio     string   `json:"aspect_ratio"`
	ImageSize       string   `json:"image_size"`
	Model           string   `json:"model"`
	Provider        string   `json:"provider"`
	Quality         string   `json:"quality"`
	AutoMode        string   `json:"auto_mode"`
	StyleHint       string   `json:"style_hint"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	AlternativeText string   `json:"alternative_text"`
	Caption         string   `json:"caption"`
	ReferenceImages []string `json:"reference_images"`
	SearchGrounding bool     `json:"search_grounding"`
	ThinkingLevel   string   `json:"thinking_level"`
	MediaResolution string   `json:"media_resolution"`
	Count           int      `json:"count"`
}

func (a generateArgs) toRequest() service.GenerateRequest {
	return service.GenerateRequest{
		Prompt:          a.Prompt,
		Filename:        a.Filename,
		AspectRatio:     a.AspectRatio,
		ImageSize:       a.ImageSize,
		Model:           a.Model,
		Provider:        a.Provider,
		Quality:         a.Quality,
		AutoMode:        a.AutoMode,
		StyleHint:       a.StyleHint,
		Title:           a.Title,
		Description:     a.Description,
		AlternativeText: a.AlternativeText,
		Caption:         a.Caption,
		ReferenceImages: a.ReferenceImages,
		SearchGrounding: a.SearchGrounding,
		ThinkingLevel:   a.ThinkingLevel,
		MediaResolution: a.MediaResolution,
	}
}

func (s *Server) generateImage(ctx context.Context, raw json.RawMessage) (string, error) {
	var args generateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	result, err := s.svc.GenerateImage(ctx, args.toRequest())
	if err != nil {
		return "", err
	}
	return encode(result)
}

func (s *Server) estimateCost(raw json.RawMessage) (string, error) {
	var args generateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	estimate, err := s.svc.EstimateCost(args.toRequest(), args.Count)
	if err != nil {
		return "", err
	}
	return encode(estimate)
}

func (s *Server) addToBatch(raw json.RawMessage) (string, error) {
	var args generateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	result, err := s.svc.AddToBatch(args.toRequest())
	if err != nil {
		return "", err
	}
	return encode(result)
}

func (s *Server) viewBatchQueue() (string, error) {
	entries, err := s.svc.ViewQueue()
	if err != nil {
		return "", err
	}
	return encode(map[string]any{"queue_size": len(entries), "prompts": entries})
}

func (s *Server) removeFromBatch(raw json.RawMessage) (string, error) {
	var args struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Identifier == "" {
		return "", fmt.Errorf("identifier is required")
	}
	result, err := s.svc.RemoveFromBatch(args.Identifier)
	if err != nil {
		return "", err
	}
	return encode(result)
}

func (s *Server) runBatch(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		ConvertToWebP bool `json:"convert_to_webp"`
		Upload        bool `json:"upload_to_wordpress"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	result, err := s.svc.RunBatch(ctx, batch.Options{
		ConvertToWebP: args.ConvertToWebP,
		WebPQuality:   s.webpQuality,
		Upload:        args.Upload,
	})
	if err != nil {
		return "", err
	}
	return encode(result)
}

func (s *Server) convertToWebP(raw json.RawMessage) (string, error) {
	var args struct {
		Quality int `json:"quality"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	quality := args.Quality
	if quality == 0 {
		quality = s.webpQuality
	}
	converted, err := s.svc.ConvertAllToWebP(quality)
	if err != nil {
		return "", err
	}
	return encode(map[string]any{"converted": converted, "count": len(converted)})
}

func (s *Server) listWebPImages() (string, error) {
	names, err := s.svc.ListWebPImages()
	if err != nil {
		return "", err
	}
	return encode(map[string]any{"images": names, "count": len(names)})
}

func (s *Server) uploadToWordPress(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Filenames []string `json:"filenames"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if len(args.Filenames) == 0 {
		return "", fmt.Errorf("filenames is required")
	}
	uploaded, failed, err := s.svc.UploadToWordPress(ctx, args.Filenames)
	if err != nil {
		return "", err
	}
	return encode(map[string]any{"uploaded": uploaded, "failed": failed})
}

func (s *Server) queryGenerationLog(raw json.RawMessage) (string, error) {
	var args struct {
		Filename  string `json:"filename"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	query := genlog.Query{Filename: args.Filename}
	if args.StartDate != "" {
		start, err := time.ParseInLocation("2006-01-02", args.StartDate, time.Local)
		if err != nil {
			return "", fmt.Errorf("invalid start_date %q, want YYYY-MM-DD", args.StartDate)
		}
		query.Start = start
	}
	if args.EndDate != "" {
		end, err := time.ParseInLocation("2006-01-02", args.EndDate, time.Local)
		if err != nil {
			return "", fmt.Errorf("invalid end_date %q, want YYYY-MM-DD", args.EndDate)
		}
		query.End = end.Add(24*time.Hour - time.Second)
	}

	result, err := s.svc.QueryLog(query)
	if err != nil {
		return "", err
	}

	records := make([]map[string]any, 0, len(result.Records))
	for _, r := range result.Records {
		records = append(records, map[string]any{
			"datetime":     r.Datetime.Format("2006-01-02 15:04:05"),
			"filename":     r.Filename,
			"status":       r.Status,
			"cost_usd":     r.CostUSD,
			"provider":     r.Provider,
			"quality":      r.Quality,
			"aspect_ratio": r.AspectRatio,
		})
	}
	return encode(map[string]any{
		"records":        records,
		"count":          len(records),
		"total_cost_usd": result.TotalCost,
	})
}

func (s *Server) postToLinkedIn(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Commentary string `json:"commentary"`
		LinkURL    string `json:"link_url"`
		Visibility string `json:"visibility"`
		Draft      bool   `json:"draft"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Commentary == "" {
		return "", fmt.Errorf("commentary is required")
	}
	postID, err := s.svc.PostToLinkedIn(ctx, linkedin.PostInput{
		Commentary: args.Commentary,
		LinkURL:    args.LinkURL,
		Visibility: args.Visibility,
		Draft:      args.Draft,
	})
	if err != nil {
		return "", err
	}
	return encode(map[string]any{"post_id": postID})
}

func (s *Server) commentOnLinkedInPost(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		PostID  string `json:"post_id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.PostID == "" || args.Message == "" {
		return "", fmt.Errorf("post_id and message are required")
	}
	commentID, err := s.svc.CommentOnLinkedInPost(ctx, args.PostID, args.Message)
	if err != nil {
		return "", err
	}
	return encode(map[string]any{"comment_id": commentID})
}

func encode(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
