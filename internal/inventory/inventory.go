// Package inventory tracks office equipment and its assignment to
// departments and people.
package inventory

import (
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/common/validation"
	inventoryDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/inventory"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
)

const (
	StatusAvailable   = "available"
	StatusAssigned    = "assigned"
	StatusMaintenance = "maintenance"
	StatusRetired     = "retired"
)

var Statuses = []string{StatusAvailable, StatusAssigned, StatusMaintenance, StatusRetired}

type Department struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	EquipmentCount int    `json:"equipment_count"`
}

// DepartmentFromDataModel picks the description for locale, falling back to
// English when the Polish text is missing.
func DepartmentFromDataModel(d *inventoryDatamodel.Department, locale i18n.Locale) *Department {
	desc := d.DescriptionEN
	if locale == i18n.PL && d.DescriptionPL != "" {
		desc = d.DescriptionPL
	}
	return &Department{Name: d.Name, Description: desc, Location: d.Location}
}

type Equipment struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Type                 string     `json:"type"`
	SerialNumber         string     `json:"serial_number"`
	Status               string     `json:"status"`
	AcquisitionDate      *time.Time `json:"acquisition_date,omitempty"`
	Value                *float64   `json:"value,omitempty"`
	Description          string     `json:"description,omitempty"`
	Manufacturer         string     `json:"manufacturer,omitempty"`
	Model                string     `json:"model,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	Quantity             int        `json:"quantity"`
	AssignedToDepartment *string    `json:"assigned_to_department"`
	AssignedTo           *int64     `json:"assigned_to"`
	AssignedDate         *time.Time `json:"assigned_date"`
	CreatedAt            time.Time  `json:"created_at"`
}

func (e *Equipment) IsAssigned() bool {
	return e.AssignedToDepartment != nil || e.AssignedTo != nil
}

// AssignToDepartment sets the department, stamps today's date and marks the
// item assigned. A quantity below one is stored as one.
func (e *Equipment) AssignToDepartment(department string, quantity int, now time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if quantity < 1 {
		quantity = 1
	}
	e.AssignedToDepartment = &department
	e.AssignedDate = &today
	e.Status = StatusAssigned
	e.Quantity = quantity
}

// Unassign clears both assignment targets and returns the item to stock.
func (e *Equipment) Unassign() {
	e.AssignedToDepartment = nil
	e.AssignedTo = nil
	e.AssignedDate = nil
	e.Status = StatusAvailable
}

func ToDataModel(e *Equipment) *inventoryDatamodel.Equipment {
	return &inventoryDatamodel.Equipment{
		ID:                   e.ID,
		Name:                 e.Name,
		Type:                 e.Type,
		SerialNumber:         e.SerialNumber,
		Status:               e.Status,
		AcquisitionDate:      e.AcquisitionDate,
		Value:                e.Value,
		Description:          e.Description,
		Manufacturer:         e.Manufacturer,
		Model:                e.Model,
		Notes:                e.Notes,
		Quantity:             e.Quantity,
		AssignedToDepartment: e.AssignedToDepartment,
		AssignedTo:           e.AssignedTo,
		AssignedDate:         e.AssignedDate,
		CreatedAt:            e.CreatedAt,
	}
}

func FromDataModel(e *inventoryDatamodel.Equipment) *Equipment {
	return &Equipment{
		ID:                   e.ID,
		Name:                 e.Name,
		Type:                 e.Type,
		SerialNumber:         e.SerialNumber,
		Status:               e.Status,
		AcquisitionDate:      e.AcquisitionDate,
		Value:                e.Value,
		Description:          e.Description,
		Manufacturer:         e.Manufacturer,
		Model:                e.Model,
		Notes:                e.Notes,
		Quantity:             e.Quantity,
		AssignedToDepartment: e.AssignedToDepartment,
		AssignedTo:           e.AssignedTo,
		AssignedDate:         e.AssignedDate,
		CreatedAt:            e.CreatedAt,
	}
}

type AddEquipmentRequest struct {
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	SerialNumber    string   `json:"serial_number"`
	Status          string   `json:"status"`
	AcquisitionDate string   `json:"acquisition_date"`
	Value           *float64 `json:"value"`
	Description     string   `json:"description"`
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model"`
	Notes           string   `json:"notes"`
	Quantity        int      `json:"quantity"`
	AssignTo        string   `json:"assign_to"`
}

func (r *AddEquipmentRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("name", r.Name).Required().MaxLength(255)
	v.Field("status", r.Status).OneOf(Statuses, internal.ErrCodeInvalidStatus)
	v.Field("acquisition_date", r.AcquisitionDate).Date()
	if r.Quantity != 0 {
		v.Field("quantity", r.Quantity).MinInt(1, internal.ErrCodeInvalidQuantity)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// NewEquipment builds an unsaved item from a validated request. The
// department in AssignTo must already be checked by the caller.
func NewEquipment(r *AddEquipmentRequest, now time.Time) *Equipment {
	e := &Equipment{
		Name:         strings.TrimSpace(r.Name),
		Type:         r.Category,
		SerialNumber: r.SerialNumber,
		Status:       r.Status,
		Value:        r.Value,
		Description:  r.Description,
		Manufacturer: r.Manufacturer,
		Model:        r.Model,
		Notes:        r.Notes,
		Quantity:     r.Quantity,
	}
	if e.Status == "" || e.Status == StatusAssigned {
		e.Status = StatusAvailable
	}
	if e.Quantity < 1 {
		e.Quantity = 1
	}
	if r.AcquisitionDate != "" {
		if d, err := time.Parse(time.DateOnly, r.AcquisitionDate); err == nil {
			e.AcquisitionDate = &d
		}
	}
	if r.AssignTo != "" {
		e.AssignToDepartment(r.AssignTo, e.Quantity, now)
	}
	return e
}

type AssignRequest struct {
	Department string `json:"department"`
	Quantity   int    `json:"quantity"`
}

func (r *AssignRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("department", r.Department).Required()
	if r.Quantity != 0 {
		v.Field("quantity", r.Quantity).MinInt(1, internal.ErrCodeInvalidQuantity)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type DepartmentEquipment struct {
	Department *Department  `json:"department"`
	Equipment  []*Equipment `json:"equipment"`
}

type Person struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email"`
}

type PersonEquipment struct {
	Person    *Person      `json:"person"`
	Equipment []*Equipment `json:"equipment"`
}
