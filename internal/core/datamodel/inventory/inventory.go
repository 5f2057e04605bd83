package inventory

import "time"

type Department struct {
	Name          string `gorm:"primaryKey;column:name;type:varchar(100)"`
	DescriptionEN string `gorm:"column:description_en;type:varchar(255)"`
	DescriptionPL string `gorm:"column:description_pl;type:varchar(255)"`
	Location      string `gorm:"column:location;type:varchar(255)"`
}

func (Department) TableName() string { return "departments" }

// Equipment is assigned iff AssignedToDepartment or AssignedTo is set.
type Equipment struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Name                 string     `gorm:"column:name;type:varchar(255);not null"`
	Type                 string     `gorm:"column:type;type:varchar(100)"`
	SerialNumber         string     `gorm:"column:serial_number;type:varchar(255)"`
	Status               string     `gorm:"column:status;type:varchar(50);not null;default:available"`
	AcquisitionDate      *time.Time `gorm:"column:acquisition_date"`
	Value                *float64   `gorm:"column:value"`
	Description          string     `gorm:"column:description;type:text"`
	Manufacturer         string     `gorm:"column:manufacturer;type:varchar(255)"`
	Model                string     `gorm:"column:model;type:varchar(255)"`
	Notes                string     `gorm:"column:notes;type:text"`
	Quantity             int        `gorm:"column:quantity;not null;default:1"`
	AssignedToDepartment *string    `gorm:"column:assigned_to_department;type:varchar(100);index"`
	AssignedTo           *int64     `gorm:"column:assigned_to;index"`
	AssignedDate         *time.Time `gorm:"column:assigned_date"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Equipment) TableName() string { return "equipment" }
