// Package storage provides sandboxed file operations for toolsy's input
// and output namespaces. All file operations are restricted to configured
// directories to prevent path traversal.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sandbox provides sandboxed file operations within a base directory.
// It prevents path traversal by ensuring all paths resolve within the sandbox.
type Sandbox struct {
	baseDir string
}

// NewSandbox creates a new Sandbox rooted at the given base directory.
// The base directory is created if it doesn't exist.
func NewSandbox(baseDir string) (*Sandbox, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0750); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}

	return &Sandbox{baseDir: absPath}, nil
}

// BaseDir returns the absolute path to the sandbox base directory.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// ResolvePath resolves a relative path within the sandbox.
// Returns an error if the path would escape the sandbox or is an absolute path.
func (s *Sandbox) ResolvePath(relativePath string) (string, error) {
	// Reject absolute paths outright
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("path escapes sandbox: %s (absolute paths not allowed)", relativePath)
	}

	// Clean the path to remove . and .. components
	cleanPath := filepath.Clean(relativePath)

	fullPath := filepath.Join(s.baseDir, cleanPath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	// Ensure the path is within the sandbox
	if !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) && absPath != s.baseDir {
		return "", fmt.Errorf("path escapes sandbox: %s", relativePath)
	}

	return absPath, nil
}

// Exists checks if a path exists within the sandbox.
func (s *Sandbox) Exists(relativePath string) (bool, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking path: %w", err)
	}
	return true, nil
}

// MkdirAll creates a directory and all parent directories within the sandbox.
func (s *Sandbox) MkdirAll(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// OpenFile opens a file within the sandbox with the given flags and permissions.
func (s *Sandbox) OpenFile(relativePath string, flag int, perm os.FileMode) (*os.File, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	// Ensure parent directory exists for write operations
	if flag&(os.O_CREATE|os.O_WRONLY|os.O_RDWR) != 0 {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating parent directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return file, nil
}

// Open opens a file within the sandbox for reading.
func (s *Sandbox) Open(relativePath string) (*os.File, error) {
	return s.OpenFile(relativePath, os.O_RDONLY, 0)
}

// Remove removes a file or empty directory within the sandbox.
// A missing file is a no-op, which keeps deferred artifact deletion
// idempotent.
func (s *Sandbox) Remove(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// Rename renames/moves a file within the sandbox.
func (s *Sandbox) Rename(oldPath, newPath string) error {
	oldAbs, err := s.ResolvePath(oldPath)
	if err != nil {
		return fmt.Errorf("resolving old path: %w", err)
	}

	newAbs, err := s.ResolvePath(newPath)
	if err != nil {
		return fmt.Errorf("resolving new path: %w", err)
	}

	dir := filepath.Dir(newAbs)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	if err := os.Rename(oldAbs, newAbs); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

// CreateTemp creates a new temporary file in the given sandbox directory.
// The caller is responsible for closing and removing the file.
func (s *Sandbox) CreateTemp(dir, pattern string) (*os.File, error) {
	if dir == "" {
		dir = "temp"
	}

	absDir, err := s.ResolvePath(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absDir, 0750); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	file, err := os.CreateTemp(absDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return file, nil
}

// List returns a list of entries in a directory within the sandbox.
// A missing directory yields an empty list.
func (s *Sandbox) List(relativePath string) ([]os.DirEntry, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return entries, nil
}

// Stat returns file info for a path within the sandbox.
func (s *Sandbox) Stat(relativePath string) (os.FileInfo, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("getting file info: %w", err)
	}
	return info, nil
}

// Size returns the size of a file within the sandbox.
func (s *Sandbox) Size(relativePath string) (int64, error) {
	info, err := s.Stat(relativePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicPublish atomically publishes a file from an external absolute path
// to a location within the sandbox. It first tries a direct rename (efficient
// if same filesystem), then falls back to copy-then-rename for cross-filesystem
// scenarios.
func (s *Sandbox) AtomicPublish(srcAbsPath, destRelativePath string) error {
	targetPath, err := s.ResolvePath(destRelativePath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	// Try direct rename first (atomic if same filesystem)
	if err := os.Rename(srcAbsPath, targetPath); err == nil {
		return nil
	}

	return s.atomicCopyPublish(srcAbsPath, targetPath)
}

// atomicCopyPublish copies a file then renames it for atomicity.
func (s *Sandbox) atomicCopyPublish(srcAbsPath, targetPath string) error {
	dir := filepath.Dir(targetPath)
	tempName := fmt.Sprintf(".%s.%s.tmp", filepath.Base(targetPath), randomHex(8))
	tempPath := filepath.Join(dir, tempName)

	srcFile, err := os.Open(srcAbsPath)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer srcFile.Close()

	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	_, err = io.Copy(tempFile, srcFile)
	closeErr := tempFile.Close()

	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("copying to temp file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	// Atomic rename (temp and dest are now on same filesystem)
	if err := os.Rename(tempPath, targetPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming to target: %w", err)
	}

	// Source removal after the publish; a leftover source is cleaned up by
	// the startup sweep anyway.
	os.Remove(srcAbsPath)

	return nil
}

// randomHex generates a random hex string of the specified length.
func randomHex(n int) string {
	bytes := make([]byte, n/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to less random but still unique
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(bytes)[:n]
}
