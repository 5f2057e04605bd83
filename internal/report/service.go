package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	reportDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/report"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RepositoryAPI interface {
	Create(ctx context.Context, r *reportDatamodel.Report) error
	Recent(ctx context.Context, limit int) ([]*reportDatamodel.Report, error)
	Get(ctx context.Context, id string) (*reportDatamodel.Report, error)
	Delete(ctx context.Context, id string) error
}

// Source loads the rows behind a report type.
type Source interface {
	Rows(ctx context.Context, q Query) (*Table, error)
}

type ServiceAPI interface {
	Generate(ctx context.Context, p *internal.Principal, req *GenerateRequest) (*Report, error)
	Recent(ctx context.Context, limit int) ([]*Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	Open(ctx context.Context, id string) (*Report, *os.File, error)
	Delete(ctx context.Context, id string) error
	ContentType(format string) string
}

type Service struct {
	repo      RepositoryAPI
	source    Source
	dir       string
	renderers map[string]Renderer
	logger    *slog.Logger
	now       func() time.Time
}

var _ ServiceAPI = (*Service)(nil)

// NewService renders CSV unless other renderers are given.
func NewService(repo RepositoryAPI, source Source, cfg internal.ReportsConfig, logger *slog.Logger, renderers ...Renderer) *Service {
	if len(renderers) == 0 {
		renderers = []Renderer{CSVRenderer{}}
	}
	byFormat := make(map[string]Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Format()] = r
	}
	return &Service{
		repo:      repo,
		source:    source,
		dir:       cfg.Dir,
		renderers: byFormat,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) formats() []string {
	out := make([]string, 0, len(s.renderers))
	for f := range s.renderers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (s *Service) Generate(ctx context.Context, p *internal.Principal, req *GenerateRequest) (*Report, error) {
	if req.Format == "" {
		req.Format = "csv"
	}
	if req.DateRange == "" {
		req.DateRange = RangeAll
	}
	if err := req.Validate(s.formats()); err != nil {
		return nil, err
	}
	renderer := s.renderers[req.Format]

	now := s.now().UTC()
	start, end := ResolveRange(req.DateRange, req.StartDate, req.EndDate, now)
	table, err := s.source.Rows(ctx, Query{Type: req.Type, Start: start, End: end, Limit: req.limit()})
	if err != nil {
		s.logger.Error("failed to load report rows", "type", req.Type, "error", err)
		return nil, internal.NewInternalError("failed to load report data", err)
	}
	if len(table.Rows) == 0 {
		return nil, internal.NewValidationError("No data available for the report", internal.ErrCodeValidationFailed)
	}
	table = table.Select(req.Fields)

	id := uuid.NewString()
	path := id + renderer.Extension()
	if err := s.write(path, renderer, table); err != nil {
		s.logger.Error("failed to write report", "type", req.Type, "error", err)
		return nil, internal.NewInternalError("failed to write report", err)
	}

	params, err := json.Marshal(Params{
		DateRange:   req.DateRange,
		StartDate:   start,
		EndDate:     end,
		Fields:      req.Fields,
		RecordLimit: req.limit(),
	})
	if err != nil {
		return nil, err
	}

	row := &reportDatamodel.Report{
		ID:          id,
		Name:        fmt.Sprintf("%s_report_%s%s", req.Type, now.Format("20060102_150405"), renderer.Extension()),
		Type:        req.Type,
		Format:      req.Format,
		RecordCount: len(table.Rows),
		GeneratedBy: generatedBy(p),
		GeneratedAt: now,
		Path:        path,
		Params:      datatypes.JSON(params),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to save report metadata", "id", id, "error", err)
		_ = os.Remove(filepath.Join(s.dir, path))
		return nil, err
	}

	s.logger.Info("report generated", "id", id, "type", req.Type, "records", row.RecordCount, "by", row.GeneratedBy)
	return FromDataModel(row), nil
}

func (s *Service) write(name string, renderer Renderer, table *Table) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := renderer.Render(f, table); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	return f.Close()
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.repo.Recent(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list reports", "error", err)
		return nil, err
	}
	out := make([]*Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrReportNotFound
	}
	return FromDataModel(row), nil
}

// Open returns the report and its file. A row whose file has gone missing
// reads as not found.
func (s *Service) Open(ctx context.Context, id string) (*Report, *os.File, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(r.Path)))
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("report file missing", "id", id, "path", r.Path)
			return nil, nil, internal.ErrReportNotFound
		}
		return nil, nil, internal.NewInternalError("failed to open report", err)
	}
	return r, f, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(r.Path))); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove report file", "id", id, "error", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete report", "id", id, "error", err)
		return err
	}
	s.logger.Info("report deleted", "id", id)
	return nil
}

func (s *Service) ContentType(format string) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

func generatedBy(p *internal.Principal) string {
	if p == nil || p.Username == "" {
		return "system"
	}
	return p.Username
}
