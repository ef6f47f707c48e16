package handler

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"docqa/internal/helper"
)

const uploadField = "files"

// saveUploads stores each uploaded file under dir/sessionID by its base name
// and returns the saved paths in upload order. Sessions never share a folder.
func saveUploads(c *gin.Context, files []*multipart.FileHeader, dir, sessionID string) ([]string, error) {
	sessionDir, err := uploadDir(dir, sessionID)
	if err != nil {
		return nil, err
	}
	if err := helper.CreateFolder(sessionDir); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := uploadName(fh.Filename)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(sessionDir, name)
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		log.Debug().Str("file", dst).Str("session", sessionID).Int64("size", fh.Size).Msg("Saved upload")
		paths = append(paths, dst)
	}
	return paths, nil
}

func uploadDir(dir, sessionID string) (string, error) {
	if name, err := uploadName(sessionID); err != nil || name != sessionID {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(dir, sessionID), nil
}

// uploadName keeps the base name of a client supplied file name.
func uploadName(raw string) (string, error) {
	// some browsers send a windows path
	name := filepath.Base(raw)
	name = name[strings.LastIndex(name, `\`)+1:]
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("invalid file name %q", raw)
	}
	return name, nil
}

func uploadedFiles(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[uploadField]
}

func baseNames(paths []string) []string {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names
}
