// Package assets ingests inventory from GLPI, categorizes it by naming
// convention and serves a cached, categorized read model.
package assets

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	assetDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/asset"
	"gorm.io/datatypes"
)

// Upstream itemtypes.
const (
	ItemComputer         = "Computer"
	ItemNetworkEquipment = "NetworkEquipment"
	ItemPrinter          = "Printer"
	ItemMonitor          = "Monitor"
	ItemRack             = "Rack"
)

// Stored asset types.
const (
	TypeWorkstation = "workstation"
	TypeTerminal    = "terminal"
	TypeServer      = "server"
	TypeComputer    = "computer"
	TypeNetwork     = "network"
	TypePrinter     = "printer"
	TypeMonitor     = "monitor"
	TypeRack        = "rack"
)

// Refresh categories accepted by RefreshCategory.
const (
	CategoryWorkstations = "workstations"
	CategoryTerminals    = "terminals"
	CategoryServers      = "servers"
	CategoryOthers       = "others"
	CategoryNetwork      = "network"
	CategoryPrinters     = "printers"
	CategoryMonitors     = "monitors"
	CategoryRacks        = "racks"
)

const StatusActive = "active"

// ItemTypes lists what a full refresh walks, in order.
var ItemTypes = []string{ItemComputer, ItemNetworkEquipment, ItemPrinter, ItemMonitor, ItemRack}

var itemTypeAssetType = map[string]string{
	ItemComputer:         TypeComputer,
	ItemNetworkEquipment: TypeNetwork,
	ItemPrinter:          TypePrinter,
	ItemMonitor:          TypeMonitor,
	ItemRack:             TypeRack,
}

var categoryItemType = map[string]string{
	CategoryWorkstations: ItemComputer,
	CategoryTerminals:    ItemComputer,
	CategoryServers:      ItemComputer,
	CategoryOthers:       ItemComputer,
	CategoryNetwork:      ItemNetworkEquipment,
	CategoryPrinters:     ItemPrinter,
	CategoryMonitors:     ItemMonitor,
	CategoryRacks:        ItemRack,
}

// ValidCategory reports whether c can be refreshed on its own.
func ValidCategory(c string) bool {
	_, ok := categoryItemType[c]
	return ok
}

// Categorize applies the naming convention: KS, KT and SRV prefixes win over
// the explicit type.
func Categorize(name, typ string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(upper, "KS"):
		return TypeWorkstation
	case strings.HasPrefix(upper, "KT"):
		return TypeTerminal
	case strings.HasPrefix(upper, "SRV"):
		return TypeServer
	}
	return typ
}

// computerCategory maps a computer's derived type onto its refresh category.
func computerCategory(typ string) string {
	switch typ {
	case TypeWorkstation:
		return CategoryWorkstations
	case TypeTerminal:
		return CategoryTerminals
	case TypeServer:
		return CategoryServers
	}
	return CategoryOthers
}

func isComputer(typ string) bool {
	switch typ {
	case TypeWorkstation, TypeTerminal, TypeServer, TypeComputer:
		return true
	}
	return false
}

// Record is the typed asset row built from an enriched upstream item.
type Record struct {
	Name           string
	Type           string
	SerialNumber   string
	Model          string
	Manufacturer   string
	Location       string
	IPAddress      string
	MACAddress     string
	OSInfo         string
	Status         string
	Specifications json.RawMessage
}

// NewRecord builds the stored record for an enriched item. The whole item
// is kept as the specifications blob.
func NewRecord(itemtype string, item Item) (*Record, error) {
	specs, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(item.String("name"))
	return &Record{
		Name:           name,
		Type:           Categorize(name, itemTypeAssetType[itemtype]),
		SerialNumber:   item.String("serial"),
		Model:          item.String("model_name"),
		Manufacturer:   item.String("manufacturer_name"),
		Location:       item.String("location_name"),
		IPAddress:      item.String("ip_address"),
		MACAddress:     item.String("mac"),
		OSInfo:         item.String("os_name"),
		Status:         StatusActive,
		Specifications: specs,
	}, nil
}

func ToDataModel(r *Record, seen time.Time) *assetDatamodel.Asset {
	return &assetDatamodel.Asset{
		Name:           r.Name,
		Type:           r.Type,
		SerialNumber:   r.SerialNumber,
		Model:          r.Model,
		Manufacturer:   r.Manufacturer,
		Location:       r.Location,
		IPAddress:      r.IPAddress,
		MACAddress:     r.MACAddress,
		OSInfo:         r.OSInfo,
		Status:         r.Status,
		Specifications: datatypes.JSON(r.Specifications),
		LastSeen:       seen,
	}
}

// Device is one read-model row: the stored specifications with the typed
// columns laid over them.
type Device map[string]interface{}

func DeviceFromDataModel(a *assetDatamodel.Asset) Device {
	d := Device{}
	if len(a.Specifications) > 0 {
		_ = json.Unmarshal(a.Specifications, &d)
	}
	d["asset_id"] = a.ID
	d["name"] = a.Name
	d["type"] = a.Type
	d["serial_number"] = a.SerialNumber
	d["model"] = a.Model
	d["manufacturer"] = a.Manufacturer
	d["location"] = a.Location
	d["ip_address"] = a.IPAddress
	d["mac_address"] = a.MACAddress
	d["os_info"] = a.OSInfo
	d["status"] = a.Status
	d["last_seen"] = a.LastSeen.UTC()
	return d
}

type Categorized struct {
	Workstations []Device `json:"workstations"`
	Terminals    []Device `json:"terminals"`
	Servers      []Device `json:"servers"`
	Other        []Device `json:"other"`
}

type CategoryCounts struct {
	Workstations int `json:"workstations"`
	Terminals    int `json:"terminals"`
	Servers      int `json:"servers"`
	Other        int `json:"other"`
	Network      int `json:"network"`
	Printers     int `json:"printers"`
	Monitors     int `json:"monitors"`
	Racks        int `json:"racks"`
}

// ReadModel is the categorized view of every stored asset.
type ReadModel struct {
	Computers      []Device       `json:"computers"`
	Categorized    Categorized    `json:"categorized"`
	NetworkDevices []Device       `json:"network_devices"`
	Printers       []Device       `json:"printers"`
	Monitors       []Device       `json:"monitors"`
	Racks          []Device       `json:"racks"`
	TotalCount     int            `json:"total_count"`
	CategoryCounts CategoryCounts `json:"category_counts"`
	LastRefresh    *time.Time     `json:"last_refresh"`
}

func emptyReadModel() *ReadModel {
	return &ReadModel{
		Computers: []Device{},
		Categorized: Categorized{
			Workstations: []Device{},
			Terminals:    []Device{},
			Servers:      []Device{},
			Other:        []Device{},
		},
		NetworkDevices: []Device{},
		Printers:       []Device{},
		Monitors:       []Device{},
		Racks:          []Device{},
	}
}

// BuildReadModel categorizes rows on read. Names decide before types.
func BuildReadModel(rows []*assetDatamodel.Asset) *ReadModel {
	m := emptyReadModel()
	for _, row := range rows {
		d := DeviceFromDataModel(row)
		typ := Categorize(row.Name, row.Type)
		switch {
		case isComputer(typ):
			m.Computers = append(m.Computers, d)
			switch computerCategory(typ) {
			case CategoryWorkstations:
				m.Categorized.Workstations = append(m.Categorized.Workstations, d)
			case CategoryTerminals:
				m.Categorized.Terminals = append(m.Categorized.Terminals, d)
			case CategoryServers:
				m.Categorized.Servers = append(m.Categorized.Servers, d)
			default:
				m.Categorized.Other = append(m.Categorized.Other, d)
			}
		case typ == TypeNetwork:
			m.NetworkDevices = append(m.NetworkDevices, d)
		case typ == TypePrinter:
			m.Printers = append(m.Printers, d)
		case typ == TypeMonitor:
			m.Monitors = append(m.Monitors, d)
		case typ == TypeRack:
			m.Racks = append(m.Racks, d)
		default:
			m.Computers = append(m.Computers, d)
			m.Categorized.Other = append(m.Categorized.Other, d)
		}

		if seen := row.LastSeen.UTC(); m.LastRefresh == nil || seen.After(*m.LastRefresh) {
			m.LastRefresh = &seen
		}
	}

	m.CategoryCounts = CategoryCounts{
		Workstations: len(m.Categorized.Workstations),
		Terminals:    len(m.Categorized.Terminals),
		Servers:      len(m.Categorized.Servers),
		Other:        len(m.Categorized.Other),
		Network:      len(m.NetworkDevices),
		Printers:     len(m.Printers),
		Monitors:     len(m.Monitors),
		Racks:        len(m.Racks),
	}
	m.TotalCount = len(m.Computers) + len(m.NetworkDevices) + len(m.Printers) + len(m.Monitors) + len(m.Racks)
	return m
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
