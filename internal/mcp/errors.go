// Package mcp serves the document index over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

// Server-defined JSON-RPC error codes.
const (
	ErrCodeIndexEmpty      = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeDocNotFound     = -32004
	ErrCodeDocTooLarge     = -32005

	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrIndexEmpty is returned by search when the collection holds no chunks.
var ErrIndexEmpty = errors.New("index is empty")

// MCPError is an error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. The message carries the
// suggestion of a RagError so the client can show it to the user.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	if re, ok := rerrors.As(err); ok {
		return mapRagError(re)
	}

	switch {
	case errors.Is(err, ErrIndexEmpty):
		return &MCPError{Code: ErrCodeIndexEmpty, Message: "Index is empty. Run 'tfrag index --update' first."}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an invalid-params error.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapRagError(re *rerrors.RagError) *MCPError {
	msg := re.Message
	if re.Suggestion != "" {
		msg = re.Message + ". " + re.Suggestion
	}

	switch re.Code {
	case rerrors.ErrCodeEmbeddingFailed, rerrors.ErrCodeModelNotFound:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: msg}
	case rerrors.ErrCodeReadFailed:
		return &MCPError{Code: ErrCodeDocNotFound, Message: msg}
	case rerrors.ErrCodeFileTooLarge:
		return &MCPError{Code: ErrCodeDocTooLarge, Message: msg}
	}

	switch re.Category {
	case rerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: msg}
	case rerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}
