package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/common"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/session"
	"github.com/uengine-oss/robo-analyzer-vue3-sub003/internal/stream"
)

// ParseSystem names one system of the project and the files to analyze.
type ParseSystem struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// ParseRequest triggers analysis on the parsing server.
type ParseRequest struct {
	Strategy    string        `json:"strategy"`
	Target      string        `json:"target"`
	ProjectName string        `json:"projectName"`
	Systems     []ParseSystem `json:"systems"`
}

// ParseResponse carries per-file analysis results.
type ParseResponse struct {
	Files []session.ParsedFile `json:"files"`
}

// Parse runs the parsing operation. Unlike understanding and convert this is
// a plain request/response call.
func (c *Client) Parse(ctx context.Context, sess Session, req ParseRequest) (ParseResponse, error) {
	if strings.TrimSpace(req.ProjectName) == "" {
		return ParseResponse{}, fmt.Errorf("project name required")
	}
	if len(req.Systems) == 0 {
		return ParseResponse{}, fmt.Errorf("at least one system required")
	}
	var resp ParseResponse
	if err := c.doJSON(ctx, sess, http.MethodPost, "parse", c.parserBase+"/parsing", req, &resp); err != nil {
		return ParseResponse{}, err
	}
	common.Logger().Info("gateway: parse finished", "project", req.ProjectName, "files", len(resp.Files))
	return resp, nil
}

// UnderstandingRequest starts graph generation on the backend.
type UnderstandingRequest struct {
	ProjectName string `json:"projectName"`
	NodeLimit   int    `json:"nodeLimit,omitempty"`
}

// StreamUnderstanding opens the understanding NDJSON stream and drives it to
// completion, delivering every event to the handler in arrival order. The
// call returns when the stream terminates, the context is canceled, or the
// transport fails.
func (c *Client) StreamUnderstanding(ctx context.Context, sess Session, req UnderstandingRequest, handler stream.Handler) error {
	if strings.TrimSpace(req.ProjectName) == "" {
		return fmt.Errorf("project name required")
	}
	body, err := c.openStream(ctx, sess, "understanding", c.backendBase+"/cypherQuery/", req)
	if err != nil {
		return err
	}
	defer body.Close()
	return stream.Consume(ctx, body, handler)
}

// ConvertRequest starts code conversion on the backend. ClassNames must be
// non-empty; the UI disables the action otherwise, and the client enforces
// the same rule rather than issuing a doomed request.
type ConvertRequest struct {
	ProjectName string   `json:"projectName"`
	ClassNames  []string `json:"classNames"`
	UMLDepth    int      `json:"umlDepth,omitempty"`
	Target      string   `json:"target,omitempty"`
}

// StreamConvert opens the convert NDJSON stream and drives it to completion.
func (c *Client) StreamConvert(ctx context.Context, sess Session, req ConvertRequest, handler stream.Handler) error {
	if strings.TrimSpace(req.ProjectName) == "" {
		return fmt.Errorf("project name required")
	}
	if len(req.ClassNames) == 0 {
		return fmt.Errorf("class names required")
	}
	body, err := c.openStream(ctx, sess, "convert", c.backendBase+"/convert/", req)
	if err != nil {
		return err
	}
	defer body.Close()
	return stream.Consume(ctx, body, handler)
}

// DeleteAll wipes every project artifact for the session on the backend and
// returns the confirmation message.
func (c *Client) DeleteAll(ctx context.Context, sess Session) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, sess, http.MethodDelete, "delete-all", c.backendBase+"/deleteAll/", nil, &resp); err != nil {
		return "", err
	}
	common.Logger().Info("gateway: delete-all acknowledged", "message", resp.Message)
	return resp.Message, nil
}

// AlarmStreamURL is the SSE endpoint the alarm subscriber connects to.
func (c *Client) AlarmStreamURL() string {
	return c.backendBase + "/events/stream/alarms"
}
