package assets

import (
	"context"
	"log/slog"
	"strings"
)

const managementPort = "Zarządzanie"

type lookup struct {
	field    string
	itemtype string
	target   string
	fallback string
}

var commonLookups = []lookup{
	{field: "locations_id", itemtype: "Location", target: "location_name", fallback: "Unknown Location"},
	{field: "manufacturers_id", itemtype: "Manufacturer", target: "manufacturer_name", fallback: "Unknown Manufacturer"},
	{field: "users_id", itemtype: "User", target: "owner_name", fallback: "Unknown User"},
	{field: "users_id_tech", itemtype: "User", target: "tech_owner_name", fallback: "Unknown User"},
}

var modelLookups = map[string]lookup{
	ItemComputer:         {field: "computermodels_id", itemtype: "ComputerModel", target: "model_name", fallback: "Unknown Model"},
	ItemNetworkEquipment: {field: "networkequipmentmodels_id", itemtype: "NetworkEquipmentModel", target: "model_name", fallback: "Unknown Model"},
	ItemPrinter:          {field: "printermodels_id", itemtype: "PrinterModel", target: "model_name", fallback: "Unknown Model"},
	ItemMonitor:          {field: "monitormodels_id", itemtype: "MonitorModel", target: "model_name", fallback: "Unknown Model"},
	ItemRack:             {field: "rackmodels_id", itemtype: "RackModel", target: "model_name", fallback: "Unknown Model"},
}

var osLookup = lookup{field: "operatingsystems_id", itemtype: "OperatingSystem", target: "os_name", fallback: "Unknown OS"}

// Enricher resolves foreign keys to names. Lookups are memoized for the
// lifetime of one enricher, which is one refresh walk.
type Enricher struct {
	client ClientAPI
	memo   map[string]string
	logger *slog.Logger
}

func NewEnricher(client ClientAPI, logger *slog.Logger) *Enricher {
	return &Enricher{client: client, memo: make(map[string]string), logger: logger}
}

func (e *Enricher) Enrich(ctx context.Context, itemtype string, item Item) Item {
	if id, ok := item["id"]; ok {
		item["ID"] = id
	}

	lookups := append([]lookup{}, commonLookups...)
	if l, ok := modelLookups[itemtype]; ok {
		lookups = append(lookups, l)
	}
	if itemtype == ItemComputer {
		lookups = append(lookups, osLookup)
	}
	for _, l := range lookups {
		ref := item.Ref(l.field)
		if ref == "" {
			continue
		}
		item[l.target] = e.name(ctx, l, ref)
	}

	if itemtype == ItemComputer {
		ip := e.computerIP(ctx, item.String("id"))
		if ip == "" {
			ip = item.String("ip")
		}
		item["ip_address"] = ip
	}
	return item
}

func (e *Enricher) name(ctx context.Context, l lookup, ref string) string {
	key := l.itemtype + "/" + ref
	if v, ok := e.memo[key]; ok {
		return v
	}

	value := l.fallback
	found, err := e.client.Get(ctx, l.itemtype, ref)
	if err != nil {
		e.logger.Warn("glpi lookup failed", "itemtype", l.itemtype, "id", ref, "error", err)
	} else if n := displayName(l.itemtype, found); n != "" {
		value = n
	}
	e.memo[key] = value
	return value
}

func displayName(itemtype string, item Item) string {
	if itemtype == "User" {
		full := strings.TrimSpace(item.String("firstname") + " " + item.String("realname"))
		if full != "" {
			return full
		}
	}
	return item.String("name")
}

// computerIP prefers the management port and falls back to the first port
// carrying an address.
func (e *Enricher) computerIP(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	ports, err := e.client.Search(ctx, "NetworkPort", map[string]string{"items_id": id, "itemtype": ItemComputer})
	if err != nil {
		e.logger.Warn("glpi network port lookup failed", "id", id, "error", err)
		return ""
	}

	first := ""
	for _, p := range ports {
		ip := portIP(p)
		if ip == "" {
			continue
		}
		if p.String("name") == managementPort {
			return ip
		}
		if first == "" {
			first = ip
		}
	}
	return first
}

func portIP(p Item) string {
	if ip := p.String("ip"); ip != "" {
		return ip
	}
	addrs, ok := p["_ipaddresses"].([]interface{})
	if !ok || len(addrs) == 0 {
		return ""
	}
	switch a := addrs[0].(type) {
	case string:
		return a
	case map[string]interface{}:
		return Item(a).String("name")
	}
	return ""
}
