package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/super-pm-ai/superpm-mcp/pkg/mcp"
)

// maxReadFileSize bounds read_file responses (10 MB).
const maxReadFileSize = 10 << 20

// FileSystemService exposes workspace file access as tools. All paths are
// resolved relative to the configured root; escapes are rejected.
type FileSystemService struct {
	root string
}

// NewFileSystemService creates a service rooted at root. The root is
// resolved to an absolute path once so later containment checks are
// stable under working-directory changes.
func NewFileSystemService(root string) (*FileSystemService, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return &FileSystemService{root: abs}, nil
}

// Register adds list_files and read_file to the dispatcher.
func (f *FileSystemService) Register(d *DispatchService) {
	d.RegisterTool(mcp.Tool{
		Name:        "list_files",
		Description: "Lists files and directories under a path inside the workspace.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"directoryPath": {
					"type": "string",
					"description": "Directory to list, relative to the workspace root. Defaults to the root."
				}
			}
		}`),
	}, f.listFiles)

	d.RegisterTool(mcp.Tool{
		Name:        "read_file",
		Description: "Reads a file inside the workspace and returns its contents.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"filePath": {
					"type": "string",
					"description": "File to read, relative to the workspace root."
				}
			},
			"required": ["filePath"]
		}`),
	}, f.readFile)
}

// resolve joins p onto the root and verifies it stays inside.
func (f *FileSystemService) resolve(p string) (string, error) {
	if p == "" {
		p = "."
	}
	full := filepath.Join(f.root, filepath.Clean("/"+p))
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace root: %s", p)
	}
	return full, nil
}

type listFilesArgs struct {
	DirectoryPath string `json:"directoryPath"`
}

type fileEntry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	Size        int64  `json:"size"`
}

func (f *FileSystemService) listFiles(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	var params listFilesArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return mcp.NewErrorResult(fmt.Sprintf("Error listing files: invalid arguments: %v", err))
		}
	}

	dir, err := f.resolve(params.DirectoryPath)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Error listing files: %v", err))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Error listing files: %v", err))
	}

	listing := make([]fileEntry, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		listing = append(listing, fileEntry{
			Name:        entry.Name(),
			IsDirectory: entry.IsDir(),
			Size:        info.Size(),
		})
	}

	out, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Error listing files: %v", err))
	}
	return mcp.NewTextResult(string(out))
}

type readFileArgs struct {
	FilePath string `json:"filePath"`
}

func (f *FileSystemService) readFile(ctx context.Context, args json.RawMessage) *mcp.CallToolResult {
	var params readFileArgs
	if err := json.Unmarshal(args, &params); err != nil || params.FilePath == "" {
		return mcp.NewErrorResult("Error reading file: filePath is required")
	}

	path, err := f.resolve(params.FilePath)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Error reading file: %v", err))
	}

	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Error reading file: %v", err))
	}
	if info.IsDir() {
		return mcp.NewErrorResult(fmt.Sprintf("Error reading file: %s is a directory", params.FilePath))
	}
	if info.Size() > maxReadFileSize {
		return mcp.NewErrorResult(fmt.Sprintf("Error reading file: %s exceeds the %d byte limit", params.FilePath, maxReadFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewErrorResult(fmt.Sprintf("Error reading file: %v", err))
	}
	return mcp.NewTextResult(string(data))
}
