package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	inventoryDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/inventory"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/user"
)

// DepartmentRow is a department with the number of items assigned to it.
type DepartmentRow struct {
	inventoryDatamodel.Department
	EquipmentCount int `gorm:"column:equipment_count"`
}

type RepositoryAPI interface {
	Departments(ctx context.Context) ([]*DepartmentRow, error)
	GetDepartment(ctx context.Context, name string) (*inventoryDatamodel.Department, error)
	DepartmentEquipment(ctx context.Context, name string) ([]*inventoryDatamodel.Equipment, error)
	PersonEquipment(ctx context.Context, userID int64) ([]*inventoryDatamodel.Equipment, error)
	GetEquipment(ctx context.Context, id int64) (*inventoryDatamodel.Equipment, error)
	Create(ctx context.Context, e *inventoryDatamodel.Equipment) error
	CreateBatch(ctx context.Context, items []*inventoryDatamodel.Equipment) error
	SaveAssignment(ctx context.Context, e *inventoryDatamodel.Equipment) error
}

// UserLookup resolves the person behind an equipment assignment.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type ServiceAPI interface {
	Departments(ctx context.Context, locale i18n.Locale) ([]*Department, error)
	DepartmentEquipment(ctx context.Context, name string, locale i18n.Locale) (*DepartmentEquipment, error)
	PersonEquipment(ctx context.Context, userID int64) (*PersonEquipment, error)
	AddEquipment(ctx context.Context, req *AddEquipmentRequest) (*Equipment, error)
	Assign(ctx context.Context, id int64, req *AssignRequest) (*Equipment, error)
	Unassign(ctx context.Context, id int64) (*Equipment, error)
	ImportInvoice(ctx context.Context, data []byte, assignTo string) (*InvoiceImport, error)
}

// InvoiceImport is the parsed invoice plus the equipment created from it.
type InvoiceImport struct {
	Invoice *Invoice     `json:"invoice"`
	Created []*Equipment `json:"created"`
}

type Service struct {
	repo   RepositoryAPI
	users  UserLookup
	parser InvoiceParser
	logger *slog.Logger
	now    func() time.Time
}

var _ ServiceAPI = (*Service)(nil)

func NewService(repo RepositoryAPI, users UserLookup, parser InvoiceParser, logger *slog.Logger) *Service {
	if parser == nil {
		parser = TextInvoiceParser{}
	}
	return &Service{
		repo:   repo,
		users:  users,
		parser: parser,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) Departments(ctx context.Context, locale i18n.Locale) ([]*Department, error) {
	rows, err := s.repo.Departments(ctx)
	if err != nil {
		s.logger.Error("failed to list departments", "error", err)
		return nil, err
	}
	out := make([]*Department, 0, len(rows))
	for _, row := range rows {
		d := DepartmentFromDataModel(&row.Department, locale)
		d.EquipmentCount = row.EquipmentCount
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) DepartmentEquipment(ctx context.Context, name string, locale i18n.Locale) (*DepartmentEquipment, error) {
	dept, err := s.repo.GetDepartment(ctx, name)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		return nil, internal.NewNotFoundError(i18n.T(locale, "invalid_department"), internal.ErrCodeInvalidDepartment)
	}

	rows, err := s.repo.DepartmentEquipment(ctx, name)
	if err != nil {
		s.logger.Error("failed to list department equipment", "department", name, "error", err)
		return nil, err
	}
	return &DepartmentEquipment{
		Department: DepartmentFromDataModel(dept, locale),
		Equipment:  fromDataModels(rows),
	}, nil
}

func (s *Service) PersonEquipment(ctx context.Context, userID int64) (*PersonEquipment, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.PersonEquipment(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list person equipment", "user_id", userID, "error", err)
		return nil, err
	}
	return &PersonEquipment{
		Person: &Person{
			ID:         u.ID,
			Name:       u.DisplayName,
			Department: u.Department,
			Email:      u.Email,
		},
		Equipment: fromDataModels(rows),
	}, nil
}

func (s *Service) AddEquipment(ctx context.Context, req *AddEquipmentRequest) (*Equipment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, req.AssignTo); err != nil {
		return nil, err
	}

	e := NewEquipment(req, s.now())
	row := ToDataModel(e)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to add equipment", "name", e.Name, "error", err)
		return nil, err
	}

	s.logger.Info("equipment added", "id", row.ID, "name", row.Name, "department", req.AssignTo)
	return FromDataModel(row), nil
}

func (s *Service) Assign(ctx context.Context, id int64, req *AssignRequest) (*Equipment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e, err := s.equipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, req.Department); err != nil {
		return nil, err
	}

	e.AssignToDepartment(req.Department, req.Quantity, s.now())
	if err := s.repo.SaveAssignment(ctx, ToDataModel(e)); err != nil {
		s.logger.Error("failed to assign equipment", "id", id, "department", req.Department, "error", err)
		return nil, err
	}

	s.logger.Info("equipment assigned", "id", id, "department", req.Department, "quantity", e.Quantity)
	return e, nil
}

func (s *Service) Unassign(ctx context.Context, id int64) (*Equipment, error) {
	e, err := s.equipment(ctx, id)
	if err != nil {
		return nil, err
	}

	e.Unassign()
	if err := s.repo.SaveAssignment(ctx, ToDataModel(e)); err != nil {
		s.logger.Error("failed to unassign equipment", "id", id, "error", err)
		return nil, err
	}

	s.logger.Info("equipment unassigned", "id", id)
	return e, nil
}

// ImportInvoice parses an invoice and adds one equipment row per line item,
// all in one batch.
func (s *Service) ImportInvoice(ctx context.Context, data []byte, assignTo string) (*InvoiceImport, error) {
	if err := s.checkDepartment(ctx, assignTo); err != nil {
		return nil, err
	}

	inv, err := s.parser.Parse(data)
	if err != nil {
		return nil, internal.NewValidationError(fmt.Sprintf("failed to process invoice: %v", err), internal.ErrCodeInvalidFileType)
	}
	if len(inv.Products) == 0 {
		return nil, internal.NewValidationError("no products found in invoice", internal.ErrCodeValidationFailed)
	}

	now := s.now()
	rows := make([]*inventoryDatamodel.Equipment, 0, len(inv.Products))
	for _, p := range inv.Products {
		unit := p.UnitPrice
		req := &AddEquipmentRequest{
			Name:            p.Name,
			Value:           &unit,
			Quantity:        int(math.Max(1, math.Round(p.Quantity))),
			AcquisitionDate: inv.Date,
			Notes:           invoiceNote(inv),
			AssignTo:        assignTo,
		}
		rows = append(rows, ToDataModel(NewEquipment(req, now)))
	}
	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		s.logger.Error("failed to import invoice", "invoice", inv.Number, "error", err)
		return nil, err
	}

	s.logger.Info("invoice imported", "invoice", inv.Number, "items", len(rows))
	return &InvoiceImport{Invoice: inv, Created: fromDataModels(rows)}, nil
}

func invoiceNote(inv *Invoice) string {
	switch {
	case inv.Number != "" && inv.Vendor != "":
		return fmt.Sprintf("Invoice %s (%s)", inv.Number, inv.Vendor)
	case inv.Number != "":
		return "Invoice " + inv.Number
	}
	return "Imported from invoice"
}

// checkDepartment accepts an empty name and otherwise requires a known
// department.
func (s *Service) checkDepartment(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	dept, err := s.repo.GetDepartment(ctx, name)
	if err != nil {
		return err
	}
	if dept == nil {
		return internal.ErrInvalidDepartment
	}
	return nil
}

func (s *Service) equipment(ctx context.Context, id int64) (*Equipment, error) {
	row, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrEquipmentNotFound
	}
	return FromDataModel(row), nil
}

func fromDataModels(rows []*inventoryDatamodel.Equipment) []*Equipment {
	out := make([]*Equipment, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}
