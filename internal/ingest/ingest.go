// Package ingest turns caller-supplied graph descriptions into validated
// rider graphs.
//
// Accepted shapes, any of which may also arrive wrapped in a JSON string:
//
//	{"nodes":[{"id":"a","origin":{...}}], "edges":[{"from":"a","to":"b","weight":2}]}
//	{"nodes":[...], "links":[{"source":"a","target":"b"}]}   networkx node-link
//	{"a":["b","c"], "b":["a"]}                               networkx dict-of-lists
//	{"a":{"b":{"weight":2}}}                                 networkx dict-of-dicts
//	[["a","b"], ["b","c",2]]                                 edge list
//	a b 2                                                    edge-list text, one edge per line
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"social-rideshare/internal/models"
)

// Ingest parses both request inputs. Graph problems are reported before
// capacity problems.
func Ingest(graph, number []byte) (*models.Graph, int, error) {
	g, err := Parse(graph)
	if err != nil {
		return nil, 0, err
	}
	capacity, err := ParseCapacity(number)
	if err != nil {
		return nil, 0, err
	}
	return g, capacity, nil
}

// Parse decodes a graph description in any supported shape
func Parse(raw []byte) (*models.Graph, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return models.NewGraph(nil, nil), nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, malformed("graph", err)
		}
		return parseString(s)
	case '{':
		return parseObject(trimmed)
	case '[':
		return parseEdgeArray(trimmed)
	default:
		return ParseText(string(trimmed))
	}
}

func parseString(s string) (*models.Graph, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return models.NewGraph(nil, nil), nil
	}
	if t[0] == '{' || t[0] == '[' {
		return Parse([]byte(t))
	}
	return ParseText(t)
}

// ParseCapacity decodes the capacity parameter. It accepts a JSON number or
// a numeric string, since browser forms post every field as text.
func ParseCapacity(raw []byte) (int, error) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || string(t) == "null" {
		verr := &models.ValidationError{}
		verr.Add("number", "is required")
		return 0, verr
	}

	text := string(t)
	if t[0] == '"' {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return 0, malformed("number", err)
		}
		text = strings.TrimSpace(s)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			verr := &models.ValidationError{}
			verr.Add("number", "must be an integer, got %q", text)
			return 0, verr
		}
		n = int(f)
	}

	if err := CheckCapacity(n); err != nil {
		return 0, err
	}
	return n, nil
}

// CheckCapacity enforces number >= 1
func CheckCapacity(n int) error {
	if n < 1 {
		return &models.CapacityError{
			Field:    "number",
			Capacity: n,
			Reason:   fmt.Sprintf("number must be at least 1, got %d", n),
		}
	}
	return nil
}

var structuredKeys = map[string]bool{
	"nodes":      true,
	"edges":      true,
	"links":      true,
	"directed":   true,
	"multigraph": true,
	"graph":      true,
}

func parseObject(raw []byte) (*models.Graph, error) {
	fields, dups, err := decodeObject(raw)
	if err != nil {
		return nil, malformed("graph", err)
	}
	if isStructured(fields) {
		if len(dups) > 0 {
			verr := &models.ValidationError{}
			for _, key := range dups {
				verr.Add("graph."+key, "duplicate key %q", key)
			}
			return nil, verr
		}
		return parseStructured(fields)
	}
	return parseAdjacency(fields, dups)
}

// decodeObject reads a JSON object keeping the first value of every key.
// Later repeats of a key are returned in dups instead of overwriting it.
func decodeObject(raw []byte) (fields map[string]json.RawMessage, dups []string, err error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}

	fields = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected an object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, seen := fields[key]; seen {
			dups = append(dups, key)
			continue
		}
		fields[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, fmt.Errorf("unexpected data after the object")
	}
	return fields, dups, nil
}

// isStructured tells a nodes/edges document apart from an adjacency map
// that happens to contain a rider called "nodes".
func isStructured(fields map[string]json.RawMessage) bool {
	hasList := false
	for key, value := range fields {
		if !structuredKeys[key] {
			return false
		}
		if key == "nodes" || key == "edges" || key == "links" {
			v := bytes.TrimSpace(value)
			if len(v) == 0 || v[0] != '[' {
				return false
			}
			hasList = true
		}
	}
	return hasList
}

type nodeDoc struct {
	ID                 json.RawMessage     `json:"id"`
	Origin             *models.Coordinates `json:"origin"`
	Destination        *models.Coordinates `json:"destination"`
	OriginAddress      string              `json:"origin_address"`
	DestinationAddress string              `json:"destination_address"`
	Earliest           *time.Time          `json:"earliest"`
	Latest             *time.Time          `json:"latest"`
	Tags               []string            `json:"tags"`
}

type edgeDoc struct {
	From   json.RawMessage `json:"from"`
	To     json.RawMessage `json:"to"`
	Source json.RawMessage `json:"source"`
	Target json.RawMessage `json:"target"`
	Weight *float64        `json:"weight"`
}

func parseStructured(fields map[string]json.RawMessage) (*models.Graph, error) {
	if raw, ok := fields["directed"]; ok {
		var directed bool
		if err := json.Unmarshal(raw, &directed); err == nil && directed {
			verr := &models.ValidationError{}
			verr.Add("graph.directed", "directed graphs are not supported")
			return nil, verr
		}
	}

	var nodes []nodeDoc
	if raw, ok := fields["nodes"]; ok {
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return nil, malformed("graph.nodes", err)
		}
	}

	edgeKey := "edges"
	if _, ok := fields["edges"]; !ok {
		edgeKey = "links"
	}
	var edges []edgeDoc
	if raw, ok := fields[edgeKey]; ok {
		if err := json.Unmarshal(raw, &edges); err != nil {
			return nil, malformed("graph."+edgeKey, err)
		}
	}

	_, hasNodes := fields["nodes"]
	b := newBuilder(!hasNodes)

	for i, n := range nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		id, err := decodeID(n.ID)
		if err != nil {
			b.verr.Add(field+".id", "%v", err)
			continue
		}
		rider := models.Rider{
			ID:                 id,
			Origin:             n.Origin,
			Destination:        n.Destination,
			OriginAddress:      strings.TrimSpace(n.OriginAddress),
			DestinationAddress: strings.TrimSpace(n.DestinationAddress),
			Tags:               normalizeTags(n.Tags),
		}
		switch {
		case n.Earliest != nil && n.Latest != nil:
			rider.Window = &models.TimeWindow{Earliest: *n.Earliest, Latest: *n.Latest}
		case n.Earliest != nil || n.Latest != nil:
			b.verr.Add(field, "earliest and latest must be given together")
		}
		b.addRider(field, rider)
	}

	for i, e := range edges {
		field := fmt.Sprintf("%s[%d]", edgeKey, i)
		fromRaw, toRaw := e.From, e.To
		if len(fromRaw) == 0 {
			fromRaw = e.Source
		}
		if len(toRaw) == 0 {
			toRaw = e.Target
		}
		from, err := decodeID(fromRaw)
		if err != nil {
			b.verr.Add(field+".from", "%v", err)
			continue
		}
		to, err := decodeID(toRaw)
		if err != nil {
			b.verr.Add(field+".to", "%v", err)
			continue
		}
		b.addEdge(field, from, to, e.Weight)
	}

	return b.graph()
}

type edgeAttrs struct {
	Weight *float64 `json:"weight"`
}

func parseAdjacency(fields map[string]json.RawMessage, dups []string) (*models.Graph, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	models.SortIDs(keys)

	b := newBuilder(true)
	for _, key := range dups {
		b.verr.Add(fmt.Sprintf("graph[%s]", key), "duplicate node id %q", key)
	}
	for _, key := range keys {
		id := strings.TrimSpace(key)
		field := fmt.Sprintf("graph[%s]", key)
		if id == "" {
			b.verr.Add(field, "node id must not be empty")
			continue
		}
		b.ensureRider(id)

		value := bytes.TrimSpace(fields[key])
		switch {
		case len(value) == 0 || string(value) == "null":
		case value[0] == '[':
			var neighbors []json.RawMessage
			if err := json.Unmarshal(value, &neighbors); err != nil {
				b.verr.Add(field, "malformed neighbor list: %v", err)
				continue
			}
			for i, raw := range neighbors {
				to, err := decodeID(raw)
				if err != nil {
					b.verr.Add(fmt.Sprintf("%s[%d]", field, i), "%v", err)
					continue
				}
				b.addEdge(fmt.Sprintf("%s[%d]", field, i), id, to, nil)
			}
		case value[0] == '{':
			neighbors, repeated, err := decodeObject(value)
			if err != nil {
				b.verr.Add(field, "malformed neighbor map: %v", err)
				continue
			}
			for _, n := range repeated {
				b.verr.Add(fmt.Sprintf("%s[%s]", field, n), "duplicate neighbor %q", n)
			}
			names := make([]string, 0, len(neighbors))
			for n := range neighbors {
				names = append(names, n)
			}
			models.SortIDs(names)
			for _, n := range names {
				var attrs edgeAttrs
				if raw := bytes.TrimSpace(neighbors[n]); len(raw) > 0 && string(raw) != "null" {
					if err := json.Unmarshal(raw, &attrs); err != nil {
						b.verr.Add(fmt.Sprintf("%s[%s]", field, n), "malformed edge attributes: %v", err)
						continue
					}
				}
				b.addEdge(fmt.Sprintf("%s[%s]", field, n), id, strings.TrimSpace(n), attrs.Weight)
			}
		default:
			b.verr.Add(field, "adjacency must be a list or an object")
		}
	}
	return b.graph()
}

func parseEdgeArray(raw []byte) (*models.Graph, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, malformed("graph", err)
	}

	b := newBuilder(true)
	for i, row := range rows {
		field := fmt.Sprintf("graph[%d]", i)
		if len(row) < 2 || len(row) > 3 {
			b.verr.Add(field, "edge must have 2 or 3 elements, got %d", len(row))
			continue
		}
		from, err := decodeID(row[0])
		if err != nil {
			b.verr.Add(field+"[0]", "%v", err)
			continue
		}
		to, err := decodeID(row[1])
		if err != nil {
			b.verr.Add(field+"[1]", "%v", err)
			continue
		}

		var weight *float64
		if len(row) == 3 {
			data := bytes.TrimSpace(row[2])
			if len(data) > 0 && data[0] == '{' {
				var attrs edgeAttrs
				if err := json.Unmarshal(data, &attrs); err != nil {
					b.verr.Add(field+"[2]", "malformed edge attributes: %v", err)
					continue
				}
				weight = attrs.Weight
			} else {
				var w float64
				if err := json.Unmarshal(data, &w); err != nil {
					b.verr.Add(field+"[2]", "weight must be a number")
					continue
				}
				weight = &w
			}
		}
		b.addEdge(field, from, to, weight)
	}
	return b.graph()
}

// ParseText reads an edge list with one "from to [weight]" entry per line.
// A line with a single token declares an isolated rider; '#' starts a comment.
func ParseText(text string) (*models.Graph, error) {
	b := newBuilder(true)
	for n, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ',' || r == '\r'
		})
		field := fmt.Sprintf("line %d", n+1)

		switch len(tokens) {
		case 0:
		case 1:
			b.ensureRider(tokens[0])
		case 2:
			b.addEdge(field, tokens[0], tokens[1], nil)
		case 3:
			w, err := strconv.ParseFloat(tokens[2], 64)
			if err != nil {
				b.verr.Add(field, "invalid weight %q", tokens[2])
				continue
			}
			b.addEdge(field, tokens[0], tokens[1], &w)
		default:
			b.verr.Add(field, "expected \"from to [weight]\", got %d fields", len(tokens))
		}
	}
	return b.graph()
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("node id is required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("malformed node id: %v", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("node id must not be empty")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("node id must be a string or a number")
	}
	return n.String(), nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func malformed(field string, err error) error {
	verr := &models.ValidationError{}
	verr.Add(field, "malformed input: %v", err)
	return verr
}
