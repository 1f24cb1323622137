package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// AuditConversationID is the conversation that receives audit turns.
const AuditConversationID = "default"

// TurnRecorder appends audit turns. Satisfied by the conversation repository.
type TurnRecorder interface {
	AppendTurns(ctx context.Context, turns ...*agent.Turn) error
}

// FileTools lists and registers files in the uploads and reports directories.
type FileTools struct {
	config   *ToolConfig
	recorder TurnRecorder
}

// NewFileTools creates the file tool set. recorder may be nil.
func NewFileTools(config *ToolConfig, recorder TurnRecorder) *FileTools {
	return &FileTools{config: config, recorder: recorder}
}

// Executors returns the file executors keyed by tool name.
func (t *FileTools) Executors() map[string]Executor {
	return map[string]Executor{
		"list_files":  Typed[ListFilesArgs](t.listFiles),
		"upload_file": Typed[UploadFileArgs](t.uploadFile),
	}
}

// FileInfo describes one listed file.
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Type     string    `json:"type"`
	Modified time.Time `json:"modified"`
}

// ListFilesArgs selects a directory.
type ListFilesArgs struct {
	Directory string `json:"directory"`
	Limit     int    `json:"limit"`
}

func (a *ListFilesArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Directory, validation.Required, validation.In("uploads", "reports")),
		validation.Field(&a.Limit, validation.Min(0)),
	)
}

func (t *FileTools) listFiles(_ context.Context, args *ListFilesArgs) (interface{}, error) {
	dir := t.config.UploadsDir
	if args.Directory == "reports" {
		dir = t.config.ReportsDir
	}

	limit := args.Limit
	if limit == 0 {
		limit = t.config.FilesDefaultLimit
	}
	if limit > t.config.FilesMaxLimit {
		limit = t.config.FilesMaxLimit
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error listing files: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Type:     fileType(entry.Name()),
			Modified: info.ModTime(),
		})
	}

	// Newest first
	sort.Slice(files, func(i, j int) bool {
		if files[i].Modified.Equal(files[j].Modified) {
			return files[i].Name > files[j].Name
		}
		return files[i].Modified.After(files[j].Modified)
	})
	if len(files) > limit {
		files = files[:limit]
	}

	return map[string]interface{}{"success": true, "files": files, "count": len(files)}, nil
}

func fileType(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "unknown"
	}
	return strings.ToLower(ext)
}

// UploadFileArgs registers a file already present in the uploads directory.
type UploadFileArgs struct {
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func (a *UploadFileArgs) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Filename, validation.Required, validation.Length(1, 255)),
	)
}

func (a *UploadFileArgs) Describe() string {
	return fmt.Sprintf("Register uploaded file %s", filepath.Base(a.Filename))
}

func (t *FileTools) uploadFile(ctx context.Context, args *UploadFileArgs) (interface{}, error) {
	path, err := resolveInDir(t.config.UploadsDir, args.Filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, domain.NewToolError(domain.ToolErrNotFound, "file not found in uploads: %s", args.Filename)
	}

	if t.recorder != nil {
		details, _ := json.Marshal(map[string]interface{}{
			"filename": args.Filename,
			"size":     info.Size(),
		})
		turn := &agent.Turn{
			ConversationID: AuditConversationID,
			Role:           agent.RoleSystem,
			Content:        fmt.Sprintf("File uploaded: %s", args.Filename),
			ToolCalls: []agent.ToolCallSummary{{
				Tool:        "upload_file",
				Description: args.Description,
				Arguments:   details,
			}},
		}
		if err := t.recorder.AppendTurns(ctx, turn); err != nil {
			return nil, fmt.Errorf("failed to register file: %w", err)
		}
	}

	return map[string]interface{}{
		"success":  true,
		"filename": args.Filename,
		"size":     info.Size(),
		"message":  fmt.Sprintf("File '%s' registered for processing", args.Filename),
	}, nil
}

// resolveInDir keeps only the base name of filename and checks that the
// result stays inside dir.
func resolveInDir(dir, filename string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." || base == ".." {
		return "", domain.NewToolError(domain.ToolErrValidation, "invalid filename: %s", filename)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve uploads dir: %w", err)
	}
	path := filepath.Join(absDir, base)
	rel, err := filepath.Rel(absDir, path)
	if err != nil || rel != base {
		return "", domain.NewToolError(domain.ToolErrValidation, "invalid filename: %s", filename)
	}
	return path, nil
}
