package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/todolist-api/apiserver/internal/storage"
	"github.com/todolist-api/apiserver/types"
)

const (
	exportBatchSize   = 100
	exportContentType = "application/json"
)

var exportNamePattern = regexp.MustCompile(`^\d+\.json$`)

// Export describes a stored snapshot of a user's todos.
type Export struct {
	Name      string    `json:"name"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportDocument is the stored JSON body of an export.
type ExportDocument struct {
	UserID     int          `json:"user_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Todos      []types.Todo `json:"todos"`
}

// ExportService writes todo snapshots to object storage. Objects live under
// a per-user prefix so one user can never address another's exports.
type ExportService struct {
	todos   TodoRepository
	objects storage.ObjectStorage
	now     func() time.Time
}

// NewExportService builds the service. A nil objects disables exports.
func NewExportService(todos TodoRepository, objects storage.ObjectStorage) *ExportService {
	return &ExportService{
		todos:   todos,
		objects: objects,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether object storage is configured.
func (s *ExportService) Enabled() bool {
	return s.objects != nil
}

// Create snapshots every todo of owner.
func (s *ExportService) Create(ctx context.Context, owner types.User) (Export, error) {
	if !s.Enabled() {
		return Export{}, ErrExportsDisabled
	}

	doc := ExportDocument{
		UserID:     owner.ID,
		ExportedAt: s.now(),
		Todos:      []types.Todo{},
	}
	for offset := 0; ; offset += exportBatchSize {
		batch, err := s.todos.List(ctx, types.TodoFilter{
			UserID: owner.ID,
			Offset: offset,
			Limit:  exportBatchSize,
		})
		if err != nil {
			return Export{}, fmt.Errorf("list todos: %w", err)
		}
		doc.Todos = append(doc.Todos, batch...)
		if len(batch) < exportBatchSize {
			break
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return Export{}, err
	}

	name := strconv.FormatInt(doc.ExportedAt.UnixNano(), 10) + ".json"
	if err := s.objects.Put(ctx, exportKey(owner.ID, name), bytes.NewReader(body), int64(len(body)), exportContentType); err != nil {
		return Export{}, fmt.Errorf("store export: %w", err)
	}

	return Export{Name: name, Count: len(doc.Todos), CreatedAt: doc.ExportedAt}, nil
}

// Open streams a previous export of owner. Unknown or malformed names
// return storage.ErrNotFound.
func (s *ExportService) Open(ctx context.Context, owner types.User, name string) (io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, ErrExportsDisabled
	}
	if !exportNamePattern.MatchString(name) {
		return nil, storage.ErrNotFound
	}
	return s.objects.Get(ctx, exportKey(owner.ID, name))
}

func exportKey(userID int, name string) string {
	return fmt.Sprintf("exports/%d/%s", userID, name)
}
