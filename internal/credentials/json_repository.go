package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/megarelay/internal/filex"
	"github.com/dmitrijs2005/megarelay/internal/models"
)

// JSONRepository keeps credentials in an indented JSON file shaped as
//
//	{"<user id>": [{"email": ..., "secret": ..., "status": ..., "error": ...}]}
//
// and the selected index per user in a sidecar file next to it (see
// SelectionPath).
type JSONRepository struct {
	path         string
	selectedPath string
}

func NewJSONRepository(path string) *JSONRepository {
	return &JSONRepository{path: path, selectedPath: SelectionPath(path)}
}

// SelectionPath derives the selection file from the accounts file:
// "accounts.json" becomes "accounts.selected.json".
func SelectionPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".json"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".selected" + ext
}

// readJSON decodes path into v. A missing or empty file leaves v untouched.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (r *JSONRepository) Load(ctx context.Context) (models.Document, error) {
	doc := models.NewDocument()

	if err := readJSON(r.path, &doc.Accounts); err != nil {
		return models.Document{}, err
	}
	if err := readJSON(r.selectedPath, &doc.Selected); err != nil {
		return models.Document{}, err
	}
	if doc.Accounts == nil {
		doc.Accounts = make(map[int64][]models.Credential)
	}
	if doc.Selected == nil {
		doc.Selected = make(map[int64]int)
	}

	// The two files are not written atomically together; a selection left
	// pointing past the list falls back to "first account".
	for user, idx := range doc.Selected {
		if idx < 0 || idx >= len(doc.Accounts[user]) {
			delete(doc.Selected, user)
		}
	}
	return doc, nil
}

// Save writes each file to a temp file in the same directory and renames it
// over the target so readers never observe a partial document.
func (r *JSONRepository) Save(ctx context.Context, doc models.Document) error {
	accounts := doc.Accounts
	if accounts == nil {
		accounts = map[int64][]models.Credential{}
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if err := filex.WriteFileAtomic(r.path, data, 0o600); err != nil {
		return err
	}

	selected := doc.Selected
	if selected == nil {
		selected = map[int64]int{}
	}
	data, err = json.MarshalIndent(selected, "", "  ")
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	return filex.WriteFileAtomic(r.selectedPath, data, 0o600)
}
