// Package catalog describes the simulated vehicle namespace and synthesizes
// values for its leaves.
package catalog

import (
	"strings"
)

// Kind is the value kind of a leaf resource.
type Kind uint8

const (
	Numeric Kind = iota + 1
	Textual
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Textual:
		return "textual"
	default:
		return "unknown"
	}
}

// Group partitions the descriptors of the catalog.
type Group uint8

const (
	DataItem Group = iota + 1
	ECUProperty
	ECUInstance
)

const (
	vehiclePrefix = "vehicle"
	dataPrefix    = "vehicle/data"
	ecusPrefix    = "vehicle/ecus"
)

// Descriptor identifies one resource and the kind of value it yields.
type Descriptor struct {
	Path  string
	Name  string
	Kind  Kind
	Group Group
}

type entry struct {
	name string
	kind Kind
}

// Catalog is the fixed resource namespace. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	dataItems  []entry
	ecus       []string
	properties []entry
}

// Default returns the namespace of the simulated adapter.
func Default() *Catalog {
	return &Catalog{
		dataItems: []entry{
			{"EngineRPM", Numeric},
			{"Ignition_State", Textual},
			{"VehicleSpeed", Numeric},
			{"Elapsed_Time", Numeric},
		},
		ecus: []string{"can0ecu0", "can0ecu1", "can1ecu0"},
		properties: []entry{
			{"VIN", Textual},
			{"Price", Numeric},
			{"Previous_Owner", Textual},
		},
	}
}

// DataItem looks up a vehicle data item by name.
func (c *Catalog) DataItem(name string) (Descriptor, bool) {
	for _, e := range c.dataItems {
		if e.name == name {
			return Descriptor{Path: dataPrefix + "/" + name, Name: name, Kind: e.kind, Group: DataItem}, true
		}
	}
	return Descriptor{}, false
}

// HasECU reports whether ecu is a known ECU instance.
func (c *Catalog) HasECU(ecu string) bool {
	for _, e := range c.ecus {
		if e == ecu {
			return true
		}
	}
	return false
}

// ECUProperty looks up property prop of ECU instance ecu.
func (c *Catalog) ECUProperty(ecu, prop string) (Descriptor, bool) {
	if !c.HasECU(ecu) {
		return Descriptor{}, false
	}
	for _, e := range c.properties {
		if e.name == prop {
			return Descriptor{
				Path:  ecusPrefix + "/" + ecu + "/" + prop,
				Name:  prop,
				Kind:  e.kind,
				Group: ECUProperty,
			}, true
		}
	}
	return Descriptor{}, false
}

// Describe resolves a leaf path such as "vehicle/data/EngineRPM" or
// "vehicle/ecus/can0ecu0/VIN". Surrounding slashes are ignored.
func (c *Catalog) Describe(path string) (Descriptor, bool) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 3 || segs[0] != vehiclePrefix {
		return Descriptor{}, false
	}

	switch {
	case segs[1] == "data" && len(segs) == 3:
		return c.DataItem(segs[2])
	case segs[1] == "ecus" && len(segs) == 4:
		return c.ECUProperty(segs[2], segs[3])
	default:
		return Descriptor{}, false
	}
}

// DataItems returns the data item names in catalog order.
func (c *Catalog) DataItems() []string {
	return names(c.dataItems)
}

// ECUs returns the ECU instance identifiers in catalog order.
func (c *Catalog) ECUs() []string {
	out := make([]string, len(c.ecus))
	copy(out, c.ecus)
	return out
}

// ECUProperties returns the property names shared by every ECU.
func (c *Catalog) ECUProperties() []string {
	return names(c.properties)
}

func (c *Catalog) DataItemPaths() []string {
	return prefixed(dataPrefix, c.DataItems())
}

func (c *Catalog) ECUPaths() []string {
	return prefixed(ecusPrefix, c.ecus)
}

// ECUPropertyPaths returns the child paths of one ECU, or nil when the ECU
// is unknown.
func (c *Catalog) ECUPropertyPaths(ecu string) []string {
	if !c.HasECU(ecu) {
		return nil
	}
	return prefixed(ecusPrefix+"/"+ecu, c.ECUProperties())
}

// Descriptors lists every leaf of the catalog: all data items followed by
// every property of every ECU.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(c.dataItems)+len(c.ecus)*len(c.properties))
	for _, e := range c.dataItems {
		d, _ := c.DataItem(e.name)
		out = append(out, d)
	}
	for _, ecu := range c.ecus {
		for _, p := range c.properties {
			d, _ := c.ECUProperty(ecu, p.name)
			out = append(out, d)
		}
	}
	return out
}

func names(entries []entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

func prefixed(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = prefix + "/" + item
	}
	return out
}
