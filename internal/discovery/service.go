// Package discovery answers path queries against the simulated vehicle
// namespace and the subscription and alarm registries.
package discovery

import (
	"strings"

	"codeberg.org/mutker/wvasim/internal/catalog"
	"codeberg.org/mutker/wvasim/internal/registry"
)

// Method is the operation a request performs on a path.
type Method uint8

const (
	Get Method = iota + 1
	Put
	Delete
)

func (m Method) String() string {
	switch m {
	case Get:
		return "GET"
	case Put:
		return "PUT"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Request is one query against the namespace. Path is relative to the API
// root; surrounding slashes are ignored.
type Request struct {
	Method Method
	Path   string
	Params map[string]string
}

// Response carries the JSON body of an answer. A nil Body means the
// resource does not exist and is encoded as null.
type Response struct {
	Body   any
	Family string
}

func (r Response) Found() bool {
	return r.Body != nil
}

// Path families, used to label requests in logs and metrics.
const (
	FamilyRoot          = "root"
	FamilyVehicle       = "vehicle"
	FamilyHardware      = "hw"
	FamilyConfig        = "config"
	FamilyData          = "data"
	FamilyECUs          = "ecus"
	FamilySubscriptions = "subscriptions"
	FamilyAlarms        = "alarms"
	FamilyUnknown       = "unknown"
)

var (
	rootGroups     = []string{"vehicle", "config", "hw"}
	vehicleGroups  = []string{"vehicle/ecus", "vehicle/data"}
	hardwareGroups = []string{"hw/buttons", "hw/leds", "hw/time"}
)

// Service routes requests. It holds no state of its own; the registries it
// is given serialize their own access.
type Service struct {
	catalog *catalog.Catalog
	synth   *catalog.Synthesizer
	subs    *registry.Subscriptions
	alarms  *registry.Alarms
}

func NewService(c *catalog.Catalog, s *catalog.Synthesizer, subs *registry.Subscriptions, alarms *registry.Alarms) *Service {
	return &Service{
		catalog: c,
		synth:   s,
		subs:    subs,
		alarms:  alarms,
	}
}

// Query answers req. It never fails: unknown paths, unknown identifiers and
// unsupported methods all produce a nil body.
func (s *Service) Query(req Request) Response {
	trimmed := strings.Trim(req.Path, "/")
	var segs []string
	if trimmed != "" {
		segs = strings.Split(trimmed, "/")
	}

	if len(segs) == 0 {
		return s.get(req, FamilyRoot, func() any { return listing("ws", rootGroups) })
	}

	switch segs[0] {
	case "vehicle":
		return s.vehicle(req, segs[1:])
	case "hw":
		if len(segs) == 1 {
			return s.get(req, FamilyHardware, func() any { return listing("hw", hardwareGroups) })
		}
		return Response{Family: FamilyHardware}
	case "config":
		return Response{Family: FamilyConfig}
	case "subscriptions":
		return s.subscriptions(req, segs[1:])
	case "alarms":
		return s.alarmsRoute(req, segs[1:])
	default:
		return Response{Family: FamilyUnknown}
	}
}

func (s *Service) get(req Request, family string, body func() any) Response {
	if req.Method != Get {
		return Response{Family: family}
	}
	return Response{Body: body(), Family: family}
}

func (s *Service) vehicle(req Request, segs []string) Response {
	if len(segs) == 0 {
		return s.get(req, FamilyVehicle, func() any { return listing("vehicle", vehicleGroups) })
	}

	switch segs[0] {
	case "data":
		return s.data(req, segs[1:])
	case "ecus":
		return s.ecus(req, segs[1:])
	default:
		return Response{Family: FamilyVehicle}
	}
}

func (s *Service) data(req Request, segs []string) Response {
	switch len(segs) {
	case 0:
		return s.get(req, FamilyData, func() any { return listing("data", s.catalog.DataItemPaths()) })
	case 1:
		d, ok := s.catalog.DataItem(segs[0])
		if !ok {
			return Response{Family: FamilyData}
		}
		return s.get(req, FamilyData, func() any {
			v, ts := s.synth.Synthesize(d)
			return map[string]any{
				d.Name: map[string]any{
					"timestamp": catalog.FormatTimestamp(ts),
					"value":     v.Any(),
				},
			}
		})
	default:
		return Response{Family: FamilyData}
	}
}

func (s *Service) ecus(req Request, segs []string) Response {
	switch len(segs) {
	case 0:
		return s.get(req, FamilyECUs, func() any { return listing("ecus", s.catalog.ECUPaths()) })
	case 1:
		ecu := segs[0]
		if !s.catalog.HasECU(ecu) {
			return Response{Family: FamilyECUs}
		}
		return s.get(req, FamilyECUs, func() any { return listing(ecu, s.catalog.ECUPropertyPaths(ecu)) })
	case 2:
		d, ok := s.catalog.ECUProperty(segs[0], segs[1])
		if !ok {
			return Response{Family: FamilyECUs}
		}
		return s.get(req, FamilyECUs, func() any {
			v, _ := s.synth.Synthesize(d)
			return map[string]any{d.Name: v.Any()}
		})
	default:
		return Response{Family: FamilyECUs}
	}
}

func (s *Service) subscriptions(req Request, segs []string) Response {
	if len(segs) == 0 {
		return s.get(req, FamilySubscriptions, func() any {
			return listing("subscriptions", prefixAll("subscriptions/", s.subs.Names()))
		})
	}
	if len(segs) > 1 {
		return Response{Family: FamilySubscriptions}
	}

	name := segs[0]
	switch req.Method {
	case Get:
		sub, ok := s.subs.Get(name)
		if !ok {
			return Response{Family: FamilySubscriptions}
		}
		return Response{Body: map[string]any{"subscription": sub.Params}, Family: FamilySubscriptions}
	case Put:
		sub := s.subs.Put(name, req.Params)
		return Response{Body: sub.Params, Family: FamilySubscriptions}
	case Delete:
		sub, ok := s.subs.Delete(name)
		if !ok {
			return Response{Family: FamilySubscriptions}
		}
		return Response{Body: map[string]any{"subscription": sub.Params}, Family: FamilySubscriptions}
	default:
		return Response{Family: FamilySubscriptions}
	}
}

func (s *Service) alarmsRoute(req Request, segs []string) Response {
	switch {
	case len(segs) == 0:
		return s.get(req, FamilyAlarms, func() any {
			return listing("alarms", prefixAll("alarms/", s.alarms.Names()))
		})
	case len(segs) == 1 && req.Method == Put:
		s.alarms.Register(segs[0])
		return Response{Body: segs[0], Family: FamilyAlarms}
	default:
		return Response{Family: FamilyAlarms}
	}
}

func listing(key string, children []string) map[string][]string {
	if children == nil {
		children = []string{}
	}
	return map[string][]string{key: children}
}

func prefixAll(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = prefix + item
	}
	return out
}
